// Package store is the typed entity registry. Each entity kind lives in its
// own Partition keyed by a typed id, and every mutation can be mirrored to a
// change feed.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Kind names an entity partition.
type Kind string

const (
	KindCharacter Kind = "character"
	KindTile      Kind = "tile"
	KindEvent     Kind = "event"
)

// Action is the data action of a change record.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change is one change-feed record.
type Change struct {
	ID         string         `json:"id"`     // ULID, sortable by creation time
	RunID      string         `json:"run_id"` // identifies the simulation run
	Kind       Kind           `json:"kind"`
	EntityID   uint64         `json:"entity_id"`
	DataAction Action         `json:"data_action"`
	Data       map[string]any `json:"data,omitempty"`
	At         time.Time      `json:"at"`
}

// Sink receives change records. Implementations must not block the caller
// for long; the simulation lock is held while publishing.
type Sink interface {
	Publish(Change) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Change) error

// Publish calls f.
func (f SinkFunc) Publish(c Change) error { return f(c) }

// Sinks fans a record out to every sink and joins their errors.
type Sinks []Sink

// Publish sends c to every sink, continuing past failures.
func (s Sinks) Publish(c Change) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Publish(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder is implemented by entities that project themselves for the feed.
type Recorder interface {
	Record() map[string]any
}

// Feed stamps and delivers change records. A nil *Feed drops everything.
type Feed struct {
	RunID uuid.UUID
	sink  Sink
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewFeed creates a feed with a fresh run id.
func NewFeed(sink Sink, log logrus.FieldLogger) *Feed {
	return &Feed{
		RunID: uuid.New(),
		sink:  sink,
		log:   log.WithField("component", "change_feed"),
		now:   time.Now,
	}
}

// Emit builds and publishes a record. Publish failures are logged and
// swallowed so the mutation that caused them still completes.
func (f *Feed) Emit(kind Kind, id uint64, action Action, data map[string]any) {
	if f == nil || f.sink == nil {
		return
	}
	c := Change{
		ID:         ulid.Make().String(),
		RunID:      f.RunID.String(),
		Kind:       kind,
		EntityID:   id,
		DataAction: action,
		Data:       data,
		At:         f.now().UTC(),
	}
	if err := f.sink.Publish(c); err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{
			"kind":      kind,
			"entity_id": id,
			"action":    action,
		}).Warn("change publish failed")
	}
}
