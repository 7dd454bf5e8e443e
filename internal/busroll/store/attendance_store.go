package store

import (
	"context"
	"time"
)

// AttendanceRecord is the single row kept per (SubjectID, Date).
type AttendanceRecord struct {
	SubjectID string
	Date      string // YYYY-MM-DD in the ledger's location
	FirstSeen time.Time
	ActorID   string // actor whose capture produced the record; may be empty
}

// AttendanceStore persists the daily attendance ledger.  Implementations
// enforce uniqueness of (SubjectID, Date) structurally.
type AttendanceStore interface {
	// InsertIfAbsent stores rec unless a row for the same subject and date
	// exists.  It returns the row now stored and whether this call created it.
	InsertIfAbsent(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, bool, error)

	// ListByDate returns the records for date ordered by FirstSeen.
	ListByDate(ctx context.Context, date string) ([]AttendanceRecord, error)
}
