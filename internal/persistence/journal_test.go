package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilesim/internal/engine"
	"github.com/talgya/tilesim/internal/logger"
	"github.com/talgya/tilesim/internal/store"
)

func openTemp(t *testing.T, opts Options) *Journal {
	t.Helper()
	j, err := Open("sqlite", filepath.Join(t.TempDir(), "journal.db"), opts, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalPersistsChanges(t *testing.T) {
	j := openTemp(t, Options{})
	feed := store.NewFeed(j, logger.Discard())

	feed.Emit(store.KindCharacter, 1, store.ActionUpdate, map[string]any{"name": "Bram", "level": 1})
	feed.Emit(store.KindCharacter, 2, store.ActionUpdate, map[string]any{"name": "Gharn"})
	feed.Emit(store.KindCharacter, 1, store.ActionDelete, map[string]any{"name": "Bram", "level": 2})
	require.NoError(t, j.Sync())
	assert.Equal(t, int64(3), j.Written())

	ctx := context.Background()
	recent, err := j.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, store.ActionDelete, recent[0].DataAction)
	assert.Equal(t, feed.RunID.String(), recent[0].RunID)

	bram, err := j.ChangesFor(ctx, store.KindCharacter, 1, 10)
	require.NoError(t, err)
	require.Len(t, bram, 2)
	assert.Equal(t, "Bram", bram[0].Data["name"])
	assert.Equal(t, float64(2), bram[0].Data["level"])
	assert.True(t, bram[0].ID > bram[1].ID)
	assert.WithinDuration(t, time.Now(), bram[0].At, time.Minute)
}

func TestJournalPersistsEvents(t *testing.T) {
	j := openTemp(t, Options{BatchSize: 2})
	j.RecordEvent(engine.Event{Turn: 1, Clock: 0.1, Description: "a", Category: "spawn"})
	j.RecordEvent(engine.Event{Turn: 2, Clock: 0.2, Description: "b", Category: "combat"})
	j.RecordEvent(engine.Event{Turn: 3, Clock: 0.3, Description: "c", Category: "death"})
	require.NoError(t, j.Sync())

	events, err := j.RecentEvents(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].Description)
	assert.Equal(t, uint64(2), events[1].Turn)
}

func TestJournalDropsWhenClosed(t *testing.T) {
	j, err := Open("sqlite", filepath.Join(t.TempDir(), "journal.db"), Options{}, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	require.NoError(t, j.Publish(store.Change{ID: "x"}))
	assert.Equal(t, int64(1), j.Dropped())
	assert.ErrorIs(t, j.Sync(), ErrClosed)
	assert.ErrorIs(t, j.Close(), ErrClosed)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x", Options{}, logger.Discard())
	assert.Error(t, err)
}
