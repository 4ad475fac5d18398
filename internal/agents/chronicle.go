// Chronicle: a character's record of notable moments (kills, level-ups,
// unlocked archetypes, injuries) served by the API.

package agents

import "sort"

// MaxEntries bounds a chronicle.
const MaxEntries = 50

// Entry is one notable moment in a character's life.
type Entry struct {
	Turn       uint64  `json:"turn"`
	Content    string  `json:"content"`
	Importance float32 `json:"importance"` // 0.0–1.0
}

// Chronicle keeps the most important entries once full.
type Chronicle struct {
	entries []Entry
}

// Add appends an entry. When full, it replaces the lowest-importance entry
// if the new one matters more.
func (ch *Chronicle) Add(turn uint64, content string, importance float32) {
	e := Entry{Turn: turn, Content: content, Importance: importance}

	if len(ch.entries) < MaxEntries {
		ch.entries = append(ch.entries, e)
		return
	}

	minIdx := 0
	for i := 1; i < len(ch.entries); i++ {
		if ch.entries[i].Importance < ch.entries[minIdx].Importance {
			minIdx = i
		}
	}
	if e.Importance > ch.entries[minIdx].Importance {
		ch.entries[minIdx] = e
	}
}

// Len returns the number of entries.
func (ch *Chronicle) Len() int { return len(ch.entries) }

// Recent returns up to count entries, newest first.
func (ch *Chronicle) Recent(count int) []Entry {
	return ch.top(count, func(a, b Entry) bool { return a.Turn > b.Turn })
}

// Important returns up to count entries, most important first.
func (ch *Chronicle) Important(count int) []Entry {
	return ch.top(count, func(a, b Entry) bool { return a.Importance > b.Importance })
}

func (ch *Chronicle) top(count int, less func(a, b Entry) bool) []Entry {
	if len(ch.entries) == 0 {
		return nil
	}

	sorted := make([]Entry, len(ch.entries))
	copy(sorted, ch.entries)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
