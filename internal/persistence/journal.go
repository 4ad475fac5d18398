// Package persistence journals the change feed and the event log to SQL.
// SQLite (modernc) is the default backend; Postgres is selected with the
// "postgres" driver.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/talgya/tilesim/internal/engine"
	"github.com/talgya/tilesim/internal/store"
)

// ErrClosed is returned by Sync and Close once the journal is closed.
var ErrClosed = errors.New("journal closed")

// Options tunes the write queue.
type Options struct {
	QueueSize int           // pending records before new ones are dropped
	BatchSize int           // records per transaction
	Flush     time.Duration // max delay before a partial batch is written
}

// Journal persists change records and events asynchronously. Publish never
// blocks: when the queue is full the record is dropped and counted.
type Journal struct {
	conn   *sqlx.DB
	driver string
	opts   Options
	log    logrus.FieldLogger

	mu      sync.RWMutex // guards queue against close
	queue   chan item
	syncReq chan chan error
	done    chan struct{}
	closed  bool

	dropped atomic.Int64
	written atomic.Int64
}

type item struct {
	change *store.Change
	event  *engine.Event
}

type changeRow struct {
	ID         string `db:"id"`
	RunID      string `db:"run_id"`
	Kind       string `db:"kind"`
	EntityID   int64  `db:"entity_id"`
	DataAction string `db:"data_action"`
	Data       string `db:"data"`
	At         string `db:"at"`
}

type eventRow struct {
	Turn        int64   `db:"turn"`
	Clock       float64 `db:"clock"`
	Description string  `db:"description"`
	Category    string  `db:"category"`
}

// Open connects to driver ("sqlite" or "postgres"), migrates the schema and
// starts the writer.
func Open(driver, dsn string, opts Options, log logrus.FieldLogger) (*Journal, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	if opts.Flush <= 0 {
		opts.Flush = 500 * time.Millisecond
	}

	switch driver {
	case "sqlite":
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("open journal: unsupported driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite" {
		// one writer; sqlite serializes anyway
		conn.SetMaxOpenConns(1)
	}

	j := &Journal{
		conn:    conn,
		driver:  driver,
		opts:    opts,
		log:     log.WithFields(logrus.Fields{"component": "journal", "driver": driver}),
		queue:   make(chan item, opts.QueueSize),
		syncReq: make(chan chan error),
		done:    make(chan struct{}),
	}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	go j.run()
	return j, nil
}

func (j *Journal) migrate() error {
	eventID := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if j.driver == "postgres" {
		eventID = "id BIGSERIAL PRIMARY KEY"
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS changes (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			entity_id BIGINT NOT NULL,
			data_action TEXT NOT NULL,
			data TEXT NOT NULL,
			at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			` + eventID + `,
			turn BIGINT NOT NULL,
			clock DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_entity ON changes(kind, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn)`,
	}
	for _, stmt := range schema {
		if _, err := j.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Publish queues a change record. It implements store.Sink.
func (j *Journal) Publish(c store.Change) error {
	j.enqueue(item{change: &c})
	return nil
}

// RecordEvent queues an event log entry.
func (j *Journal) RecordEvent(e engine.Event) {
	j.enqueue(item{event: &e})
}

func (j *Journal) enqueue(it item) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- it:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded because the queue was
// full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Written returns how many records have been committed.
func (j *Journal) Written() int64 { return j.written.Load() }

// Sync blocks until every record queued before the call is committed.
func (j *Journal) Sync() error {
	reply := make(chan error, 1)
	select {
	case j.syncReq <- reply:
		return <-reply
	case <-j.done:
		return ErrClosed
	}
}

// Close flushes pending records and closes the connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.conn.Close()
}

func (j *Journal) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.opts.Flush)
	defer ticker.Stop()

	batch := make([]item, 0, j.opts.BatchSize)
	var reported int64
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := j.write(batch)
		if err != nil {
			j.log.WithError(err).WithField("records", len(batch)).Error("journal write failed")
		} else {
			j.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
		if d := j.dropped.Load(); d > reported {
			j.log.WithField("dropped", d-reported).Warn("journal queue full, records dropped")
			reported = d
		}
		return err
	}

	for {
		select {
		case it, ok := <-j.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, it)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case reply := <-j.syncReq:
			reply <- j.drain(&batch, flush)
		}
	}
}

// drain pulls whatever is already queued into the batch and writes it.
func (j *Journal) drain(batch *[]item, flush func() error) error {
	var errs []error
	for {
		select {
		case it, ok := <-j.queue:
			if !ok {
				return errors.Join(append(errs, flush())...)
			}
			*batch = append(*batch, it)
			if len(*batch) >= j.opts.BatchSize {
				errs = append(errs, flush())
			}
		default:
			return errors.Join(append(errs, flush())...)
		}
	}
}

func (j *Journal) write(batch []item) error {
	tx, err := j.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	insertChange := tx.Rebind(`INSERT INTO changes (id, run_id, kind, entity_id, data_action, data, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	insertEvent := tx.Rebind(`INSERT INTO events (turn, clock, description, category) VALUES (?, ?, ?, ?)`)

	for _, it := range batch {
		switch {
		case it.change != nil:
			c := it.change
			data, err := json.Marshal(c.Data)
			if err != nil {
				return fmt.Errorf("encode change %s: %w", c.ID, err)
			}
			if _, err := tx.Exec(insertChange,
				c.ID, c.RunID, string(c.Kind), int64(c.EntityID), string(c.DataAction),
				string(data), c.At.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert change %s: %w", c.ID, err)
			}
		case it.event != nil:
			e := it.event
			if _, err := tx.Exec(insertEvent, int64(e.Turn), e.Clock, e.Description, e.Category); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RecentChanges returns the latest limit change records, newest first.
func (j *Journal) RecentChanges(ctx context.Context, limit int) ([]store.Change, error) {
	var rows []changeRow
	err := j.conn.SelectContext(ctx, &rows, j.conn.Rebind(
		"SELECT id, run_id, kind, entity_id, data_action, data, at FROM changes ORDER BY id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("recent changes: %w", err)
	}
	return decodeChanges(rows)
}

// ChangesFor returns the latest limit records of one entity, newest first.
func (j *Journal) ChangesFor(ctx context.Context, kind store.Kind, id uint64, limit int) ([]store.Change, error) {
	var rows []changeRow
	err := j.conn.SelectContext(ctx, &rows, j.conn.Rebind(
		`SELECT id, run_id, kind, entity_id, data_action, data, at FROM changes
		WHERE kind = ? AND entity_id = ? ORDER BY id DESC LIMIT ?`), string(kind), int64(id), limit)
	if err != nil {
		return nil, fmt.Errorf("changes for %s %d: %w", kind, id, err)
	}
	return decodeChanges(rows)
}

// RecentEvents returns the latest limit events, newest first.
func (j *Journal) RecentEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := j.conn.SelectContext(ctx, &rows, j.conn.Rebind(
		"SELECT turn, clock, description, category FROM events ORDER BY id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, engine.Event{Turn: uint64(r.Turn), Clock: r.Clock, Description: r.Description, Category: r.Category})
	}
	return out, nil
}

func decodeChanges(rows []changeRow) ([]store.Change, error) {
	out := make([]store.Change, 0, len(rows))
	for _, r := range rows {
		c := store.Change{
			ID:         r.ID,
			RunID:      r.RunID,
			Kind:       store.Kind(r.Kind),
			EntityID:   uint64(r.EntityID),
			DataAction: store.Action(r.DataAction),
		}
		if err := json.Unmarshal([]byte(r.Data), &c.Data); err != nil {
			return nil, fmt.Errorf("decode change %s: %w", r.ID, err)
		}
		at, err := time.Parse(time.RFC3339Nano, r.At)
		if err != nil {
			return nil, fmt.Errorf("decode change %s time: %w", r.ID, err)
		}
		c.At = at
		out = append(out, c)
	}
	return out, nil
}
