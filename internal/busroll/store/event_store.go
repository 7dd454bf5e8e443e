package store

import (
	"context"
	"time"
)

type Action string

const (
	ActionIn  Action = "IN"
	ActionOut Action = "OUT"
)

func (a Action) Valid() bool {
	return a == ActionIn || a == ActionOut
}

// EventRecord is one immutable row of the presence log.
// Seq and EventID are assigned by the store on append.
type EventRecord struct {
	Seq       int64
	EventID   string
	ActorID   string
	SubjectID string
	GroupID   string // actor's group when the event was appended
	Action    Action
	Timestamp time.Time
	Source    string // "manual" | "capture"
}

// Newer reports whether e sorts after other in log order:
// timestamp first, sequence number as the tie-break.
func (e EventRecord) Newer(other EventRecord) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.After(other.Timestamp)
	}
	return e.Seq > other.Seq
}

// EventQuery selects events for range scans.  Empty slices and zero times
// mean "no constraint".
type EventQuery struct {
	ActorIDs   []string
	SubjectIDs []string
	From       time.Time // inclusive
	To         time.Time // exclusive
	Limit      int       // 0 = unlimited
	Newest     bool      // newest first when true
}

// EventStore is the append-only presence log.
type EventStore interface {
	// Append persists rec iff the subject's latest action differs from
	// rec.Action (a subject with no events counts as OUT).  Otherwise it
	// returns ErrStateConflict and writes nothing.
	Append(ctx context.Context, rec EventRecord) (EventRecord, error)

	// Latest returns the most recent event for subjectID, or ErrNotFound.
	Latest(ctx context.Context, subjectID string) (EventRecord, error)

	// LatestForSubjects returns the most recent event per subject for the
	// given IDs.  Subjects with no events are absent from the map.
	LatestForSubjects(ctx context.Context, subjectIDs []string) (map[string]EventRecord, error)

	// List returns events matching q, oldest first unless q.Newest.
	List(ctx context.Context, q EventQuery) ([]EventRecord, error)
}
