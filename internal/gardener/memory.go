package gardener

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
)

const maxRecords = 10

// CycleRecord captures what happened in a single gardener cycle.
type CycleRecord struct {
	Tick        uint64 `json:"tick"`
	Action      string `json:"action"`
	Faction     string `json:"faction,omitempty"`
	Spawned     int    `json:"spawned,omitempty"`
	Alive       int    `json:"alive"`
	Deaths      int    `json:"deaths"`
	FeedChanges int64  `json:"feed_changes,omitempty"`
	CrisisLevel string `json:"crisis_level"`
	Rationale   string `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent gardener cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file from disk. Returns empty memory if not
// found or unreadable.
func LoadMemory(path string, log logrus.FieldLogger) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	mem := CycleMemory{path: path}
	if err := json.Unmarshal(data, &mem); err != nil {
		log.WithError(err).Warn("gardener memory corrupted, starting fresh")
		return &CycleMemory{path: path}
	}
	return &mem
}

// Save writes the memory to disk. A memory without a path is kept in RAM.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Last returns the latest record, nil if there is none.
func (m *CycleMemory) Last() *CycleRecord {
	if len(m.Records) == 0 {
		return nil
	}
	return &m.Records[len(m.Records)-1]
}

// ReinforcedWithin reports whether faction was reinforced in the last n
// cycles.
func (m *CycleMemory) ReinforcedWithin(faction string, n int) bool {
	start := max(len(m.Records)-n, 0)
	for _, r := range m.Records[start:] {
		if r.Action == "spawn" && r.Faction == faction && r.Spawned > 0 {
			return true
		}
	}
	return false
}
