package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

// EventStore is an in-memory append-only presence log.
// It is intended for use in tests and dev environments.
type EventStore struct {
	mu     sync.RWMutex
	events []store.EventRecord
	latest map[string]int // subject_id -> index into events
	seq    int64
}

func NewEventStore() *EventStore {
	return &EventStore{latest: make(map[string]int)}
}

func (s *EventStore) Append(_ context.Context, rec store.EventRecord) (store.EventRecord, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Millisecond)
	if rec.Source == "" {
		rec.Source = "manual"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := store.ActionOut
	if i, ok := s.latest[rec.SubjectID]; ok {
		current = s.events[i].Action
	}
	if current == rec.Action {
		return store.EventRecord{}, store.ErrStateConflict
	}

	s.seq++
	rec.Seq = s.seq
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	s.events = append(s.events, rec)

	idx := len(s.events) - 1
	if i, ok := s.latest[rec.SubjectID]; !ok || rec.Newer(s.events[i]) {
		s.latest[rec.SubjectID] = idx
	}
	return rec, nil
}

func (s *EventStore) Latest(_ context.Context, subjectID string) (store.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.latest[subjectID]
	if !ok {
		return store.EventRecord{}, store.ErrNotFound
	}
	return s.events[i], nil
}

func (s *EventStore) LatestForSubjects(_ context.Context, subjectIDs []string) (map[string]store.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]store.EventRecord, len(subjectIDs))
	for _, id := range subjectIDs {
		if i, ok := s.latest[id]; ok {
			out[id] = s.events[i]
		}
	}
	return out, nil
}

func (s *EventStore) List(_ context.Context, q store.EventQuery) ([]store.EventRecord, error) {
	actors := toSet(q.ActorIDs)
	subjects := toSet(q.SubjectIDs)

	s.mu.RLock()
	var out []store.EventRecord
	for _, ev := range s.events {
		if actors != nil {
			if _, ok := actors[ev.ActorID]; !ok {
				continue
			}
		}
		if subjects != nil {
			if _, ok := subjects[ev.SubjectID]; !ok {
				continue
			}
		}
		if !q.From.IsZero() && ev.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !ev.Timestamp.Before(q.To) {
			continue
		}
		out = append(out, ev)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if q.Newest {
			return out[i].Newer(out[j])
		}
		return out[j].Newer(out[i])
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Events returns a copy of all appended events in append order.  Test-only helper.
func (s *EventStore) Events() []store.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.EventRecord, len(s.events))
	copy(out, s.events)
	return out
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
