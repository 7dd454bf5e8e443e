package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

const (
	SourceManual  = "manual"
	SourceCapture = "capture"

	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// Command is one requested presence transition.
type Command struct {
	ActorID   string
	SubjectID string
	Action    store.Action
	At        time.Time // zero means now
	Source    string    // defaults to SourceManual
}

// PresenceEngine validates boarding and alighting against the presence
// log and appends accepted events.
type PresenceEngine struct {
	events   store.EventStore
	registry store.RegistryStore
	opts     Options
	locks    keyedMutex
}

func NewPresenceEngine(events store.EventStore, registry store.RegistryStore, opts Options) *PresenceEngine {
	return &PresenceEngine{events: events, registry: registry, opts: opts.withDefaults()}
}

func (e *PresenceEngine) Board(ctx context.Context, actorID, subjectID string, at time.Time) (store.EventRecord, error) {
	return e.Apply(ctx, Command{ActorID: actorID, SubjectID: subjectID, Action: store.ActionIn, At: at})
}

func (e *PresenceEngine) Alight(ctx context.Context, actorID, subjectID string, at time.Time) (store.EventRecord, error) {
	return e.Apply(ctx, Command{ActorID: actorID, SubjectID: subjectID, Action: store.ActionOut, At: at})
}

// Apply validates cmd and appends it to the log.  Checks run in order:
// input, actor, subject, group, then current state.  Validation and append
// for one subject are serialized; different subjects proceed in parallel.
// A nil error means the event is in the log; a cancelled ctx never hides an
// append that committed.
func (e *PresenceEngine) Apply(ctx context.Context, cmd Command) (store.EventRecord, error) {
	actorID, err := requireID("actor_id", cmd.ActorID)
	if err != nil {
		return store.EventRecord{}, err
	}
	subjectID, err := requireID("subject_id", cmd.SubjectID)
	if err != nil {
		return store.EventRecord{}, err
	}
	if !cmd.Action.Valid() {
		return store.EventRecord{}, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("unknown action %q", cmd.Action))
	}
	source := cmd.Source
	if source == "" {
		source = SourceManual
	}

	ctx, cancel := e.opts.bound(ctx)
	defer cancel()

	actor, err := lookupActor(ctx, e.registry, actorID)
	if err != nil {
		return store.EventRecord{}, err
	}
	subject, err := lookupSubject(ctx, e.registry, subjectID)
	if err != nil {
		return store.EventRecord{}, err
	}
	if subject.GroupID == "" || subject.GroupID != actor.GroupID {
		return store.EventRecord{}, apperr.New(apperr.CodeWrongGroup,
			fmt.Sprintf("subject %s is not assigned to group %s", subjectID, actor.GroupID))
	}

	unlock := e.locks.Lock(subjectID)
	defer unlock()

	at := cmd.At
	if at.IsZero() {
		at = e.opts.now()
	}
	at = at.UTC().Truncate(time.Millisecond)

	current := store.ActionOut
	latest, err := e.events.Latest(ctx, subjectID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return store.EventRecord{}, storageErr("read latest event", err)
	default:
		current = latest.Action
		if at.Before(latest.Timestamp) {
			return store.EventRecord{}, apperr.New(apperr.CodeInvalidInput,
				fmt.Sprintf("timestamp %s precedes the latest event for %s", at.Format(time.RFC3339Nano), subjectID))
		}
	}
	if current == cmd.Action {
		return store.EventRecord{}, stateErr(cmd.Action, subjectID)
	}

	ev, err := e.events.Append(ctx, store.EventRecord{
		ActorID:   actorID,
		SubjectID: subjectID,
		GroupID:   actor.GroupID,
		Action:    cmd.Action,
		Timestamp: at,
		Source:    source,
	})
	if errors.Is(err, store.ErrStateConflict) {
		return store.EventRecord{}, stateErr(cmd.Action, subjectID)
	}
	if err != nil {
		return store.EventRecord{}, storageErr("append event", err)
	}
	return ev, nil
}

func stateErr(action store.Action, subjectID string) error {
	if action == store.ActionIn {
		return apperr.New(apperr.CodeAlreadyOnBoard, "subject "+subjectID+" is already on board")
	}
	return apperr.New(apperr.CodeNotOnBoard, "subject "+subjectID+" is not on board")
}

// IsOnBoard reports whether the subject's latest event is IN.
func (e *PresenceEngine) IsOnBoard(ctx context.Context, subjectID string) (bool, error) {
	subjectID, err := requireID("subject_id", subjectID)
	if err != nil {
		return false, err
	}

	ctx, cancel := e.opts.bound(ctx)
	defer cancel()

	if _, err := lookupSubject(ctx, e.registry, subjectID); err != nil {
		return false, err
	}
	latest, err := e.events.Latest(ctx, subjectID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("read latest event", err)
	}
	return latest.Action == store.ActionIn, nil
}

// Roster returns the sorted IDs of subjects currently assigned to groupID
// whose latest event is IN.
func (e *PresenceEngine) Roster(ctx context.Context, groupID string) ([]string, error) {
	groupID, err := requireID("group_id", groupID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.opts.bound(ctx)
	defer cancel()

	subjects, err := e.registry.ListSubjects(ctx, groupID)
	if err != nil {
		return nil, storageErr("list subjects", err)
	}
	if len(subjects) == 0 {
		return []string{}, nil
	}

	ids := subjectIDs(subjects)
	latest, err := e.events.LatestForSubjects(ctx, ids)
	if err != nil {
		return nil, storageErr("read latest events", err)
	}

	out := make([]string, 0, len(latest))
	for _, id := range ids {
		if ev, ok := latest[id]; ok && ev.Action == store.ActionIn {
			out = append(out, id)
		}
	}
	return out, nil
}

// RecentEvents returns the newest events emitted by any actor of
// actorID's group, restricted to subjects currently assigned to that
// group.  limit defaults to 20 and is capped at 500.
func (e *PresenceEngine) RecentEvents(ctx context.Context, actorID string, limit int) ([]store.EventRecord, error) {
	actorID, err := requireID("actor_id", actorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	ctx, cancel := e.opts.bound(ctx)
	defer cancel()

	actor, err := lookupActor(ctx, e.registry, actorID)
	if err != nil {
		return nil, err
	}
	actors, err := e.registry.ListActors(ctx, actor.GroupID)
	if err != nil {
		return nil, storageErr("list actors", err)
	}
	subjects, err := e.registry.ListSubjects(ctx, actor.GroupID)
	if err != nil {
		return nil, storageErr("list subjects", err)
	}
	if len(subjects) == 0 {
		return []store.EventRecord{}, nil
	}

	evs, err := e.events.List(ctx, store.EventQuery{
		ActorIDs:   actorIDs(actors),
		SubjectIDs: subjectIDs(subjects),
		Limit:      limit,
		Newest:     true,
	})
	if err != nil {
		return nil, storageErr("list events", err)
	}
	if evs == nil {
		evs = []store.EventRecord{}
	}
	return evs, nil
}
