package store

import (
	"cmp"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hero struct {
	id    uint64
	level int
}

func (h *hero) Record() map[string]any { return map[string]any{"level": h.level} }

type recordingSink struct {
	changes []Change
	fail    bool
}

func (r *recordingSink) Publish(c Change) error {
	r.changes = append(r.changes, c)
	if r.fail {
		return errors.New("broker down")
	}
	return nil
}

func TestPartitionAddGetRemove(t *testing.T) {
	p := NewPartition[uint64, *hero](KindCharacter)
	p.Add(1, &hero{id: 1})

	h, ok := p.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), h.id)

	_, ok = p.Get(2)
	assert.False(t, ok)

	p.Remove(2)
	p.Remove(1)
	assert.Equal(t, 0, p.Len())
}

func TestPartitionDuplicatePanics(t *testing.T) {
	p := NewPartition[uint64, *hero](KindCharacter)
	p.Add(1, &hero{id: 1})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrDuplicateID)
	}()
	p.Add(1, &hero{id: 1})
}

func TestPartitionOrdering(t *testing.T) {
	p := NewPartition[uint64, *hero](KindCharacter)
	p.OrderBy(func(a, b *hero) int { return cmp.Compare(b.level, a.level) })
	p.Add(3, &hero{id: 3, level: 1})
	p.Add(1, &hero{id: 1, level: 1})
	p.Add(2, &hero{id: 2, level: 4})

	var ids []uint64
	for _, h := range p.All() {
		ids = append(ids, h.id)
	}
	assert.Equal(t, []uint64{2, 1, 3}, ids)
}

func TestFeedEmitsRecords(t *testing.T) {
	sink := &recordingSink{}
	log, _ := test.NewNullLogger()
	feed := NewFeed(sink, log)

	p := NewPartition[uint64, *hero](KindCharacter)
	p.SetFeed(feed)
	h := &hero{id: 5, level: 2}
	p.Add(5, h)
	h.level = 3
	p.Touch(5)
	p.Remove(5)

	require.Len(t, sink.changes, 3)
	assert.Equal(t, ActionUpdate, sink.changes[0].DataAction)
	assert.Equal(t, 3, sink.changes[1].Data["level"])
	assert.Equal(t, ActionDelete, sink.changes[2].DataAction)
	for _, c := range sink.changes {
		assert.Equal(t, feed.RunID.String(), c.RunID)
		assert.Equal(t, uint64(5), c.EntityID)
		assert.Equal(t, KindCharacter, c.Kind)
	}
	assert.Less(t, sink.changes[0].ID, sink.changes[2].ID)
}

func TestSinkFailureDoesNotAbortMutation(t *testing.T) {
	sink := &recordingSink{fail: true}
	log, hook := test.NewNullLogger()
	p := NewPartition[uint64, *hero](KindEvent)
	p.SetFeed(NewFeed(sink, log))

	p.Add(9, &hero{id: 9})
	assert.True(t, p.Has(9))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSinksFanOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{fail: true}
	err := Sinks{a, b, SinkFunc(func(Change) error { return nil })}.Publish(Change{ID: "x"})
	assert.Error(t, err)
	assert.Len(t, a.changes, 1)
	assert.Len(t, b.changes, 1)
}
