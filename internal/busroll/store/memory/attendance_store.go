package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

type attendanceKey struct {
	subjectID string
	date      string
}

type AttendanceStore struct {
	mu   sync.Mutex
	rows map[attendanceKey]store.AttendanceRecord
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{rows: make(map[attendanceKey]store.AttendanceRecord)}
}

func (s *AttendanceStore) InsertIfAbsent(_ context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	k := attendanceKey{subjectID: rec.SubjectID, date: rec.Date}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rows[k]; ok {
		return existing, false, nil
	}
	s.rows[k] = rec
	return rec, true, nil
}

func (s *AttendanceStore) ListByDate(_ context.Context, date string) ([]store.AttendanceRecord, error) {
	s.mu.Lock()
	var out []store.AttendanceRecord
	for k, rec := range s.rows {
		if k.date == date {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out, nil
}

// Len returns the number of stored rows.  Test-only helper.
func (s *AttendanceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
