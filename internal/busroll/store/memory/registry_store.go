package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

type RegistryStore struct {
	mu       sync.RWMutex
	subjects map[string]store.SubjectRecord
	actors   map[string]store.ActorRecord
}

func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		subjects: make(map[string]store.SubjectRecord),
		actors:   make(map[string]store.ActorRecord),
	}
}

func (s *RegistryStore) GetSubject(_ context.Context, subjectID string) (store.SubjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.subjects[subjectID]
	if !ok {
		return store.SubjectRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *RegistryStore) ListSubjects(_ context.Context, groupID string) ([]store.SubjectRecord, error) {
	s.mu.RLock()
	out := make([]store.SubjectRecord, 0, len(s.subjects))
	for _, rec := range s.subjects {
		if rec.Deleted() {
			continue
		}
		if groupID != "" && rec.GroupID != groupID {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (s *RegistryStore) PutSubject(_ context.Context, rec store.SubjectRecord) error {
	rec.SubjectID = strings.TrimSpace(rec.SubjectID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.DeletedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subjects[rec.SubjectID]; ok && !existing.Deleted() {
		return store.ErrAlreadyExists
	}
	s.subjects[rec.SubjectID] = rec
	return nil
}

func (s *RegistryStore) SetSubjectGroup(_ context.Context, subjectID, groupID string) error {
	return s.updateSubject(subjectID, func(rec *store.SubjectRecord) { rec.GroupID = groupID })
}

func (s *RegistryStore) SetSubjectLeave(_ context.Context, subjectID string, onLeave bool) error {
	return s.updateSubject(subjectID, func(rec *store.SubjectRecord) { rec.OnLeave = onLeave })
}

func (s *RegistryStore) DeleteSubject(_ context.Context, subjectID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.updateSubject(subjectID, func(rec *store.SubjectRecord) { rec.DeletedAt = &at })
}

func (s *RegistryStore) updateSubject(subjectID string, fn func(*store.SubjectRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.subjects[subjectID]
	if !ok || rec.Deleted() {
		return store.ErrNotFound
	}
	fn(&rec)
	s.subjects[subjectID] = rec
	return nil
}

func (s *RegistryStore) GetActor(_ context.Context, actorID string) (store.ActorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.actors[actorID]
	if !ok {
		return store.ActorRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *RegistryStore) ListActors(_ context.Context, groupID string) ([]store.ActorRecord, error) {
	s.mu.RLock()
	out := make([]store.ActorRecord, 0, len(s.actors))
	for _, rec := range s.actors {
		if groupID != "" && rec.GroupID != groupID {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}

func (s *RegistryStore) PutActor(_ context.Context, rec store.ActorRecord) error {
	rec.ActorID = strings.TrimSpace(rec.ActorID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Kind == "" {
		rec.Kind = store.ActorDriver
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[rec.ActorID]; ok {
		return store.ErrAlreadyExists
	}
	s.actors[rec.ActorID] = rec
	return nil
}
