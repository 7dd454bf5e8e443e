package store

import (
	"context"
	"time"
)

type SubjectRecord struct {
	SubjectID string
	Name      string
	BusStop   string
	GroupID   string // empty when unassigned
	OnLeave   bool
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (s SubjectRecord) Deleted() bool { return s.DeletedAt != nil }

type ActorKind string

const (
	ActorDriver     ActorKind = "driver"
	ActorRecognizer ActorKind = "recognizer"
)

type ActorRecord struct {
	ActorID   string
	Name      string
	GroupID   string
	Kind      ActorKind
	CreatedAt time.Time
}

// RegistryStore holds subjects and actors.  Subjects are soft-deleted so
// that history in the event log keeps resolving.
type RegistryStore interface {
	// GetSubject returns the subject including soft-deleted rows, or ErrNotFound.
	GetSubject(ctx context.Context, subjectID string) (SubjectRecord, error)
	// ListSubjects returns live subjects ordered by ID; groupID "" lists all.
	ListSubjects(ctx context.Context, groupID string) ([]SubjectRecord, error)
	// PutSubject inserts a subject or revives and overwrites a deleted one.
	// A live subject with the same ID yields ErrAlreadyExists.
	PutSubject(ctx context.Context, rec SubjectRecord) error
	SetSubjectGroup(ctx context.Context, subjectID, groupID string) error
	SetSubjectLeave(ctx context.Context, subjectID string, onLeave bool) error
	DeleteSubject(ctx context.Context, subjectID string, at time.Time) error

	GetActor(ctx context.Context, actorID string) (ActorRecord, error)
	// ListActors returns actors ordered by ID; groupID "" lists all.
	ListActors(ctx context.Context, groupID string) ([]ActorRecord, error)
	// PutActor inserts an actor.  Actors are immutable once created.
	PutActor(ctx context.Context, rec ActorRecord) error
}
