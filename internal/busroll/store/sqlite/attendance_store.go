package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	dbpkg "github.com/BrandonDHaskell/busroll/internal/db"
)

type AttendanceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAttendanceStore(db *sql.DB, writer *dbpkg.Worker) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer}
}

// InsertIfAbsent leans on the (subject_id, date) primary key: a duplicate
// insert is ignored and the existing row is returned instead.
func (s *AttendanceStore) InsertIfAbsent(ctx context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	rec.FirstSeen = fromMs(toMs(rec.FirstSeen))

	var (
		stored  store.AttendanceRecord
		created bool
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO attendance(subject_id, date, first_seen_ms, actor_id)
VALUES (?, ?, ?, ?)
ON CONFLICT(subject_id, date) DO NOTHING;
`, rec.SubjectID, rec.Date, toMs(rec.FirstSeen), nullString(rec.ActorID))
		if err != nil {
			return fmt.Errorf("InsertIfAbsent insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("InsertIfAbsent rows affected: %w", err)
		}
		if n == 1 {
			stored, created = rec, true
			return nil
		}

		var (
			firstMs int64
			actorID sql.NullString
		)
		if err := tx.QueryRowContext(ctx, `
SELECT first_seen_ms, actor_id FROM attendance WHERE subject_id = ? AND date = ?;
`, rec.SubjectID, rec.Date).Scan(&firstMs, &actorID); err != nil {
			return fmt.Errorf("InsertIfAbsent read existing: %w", err)
		}
		stored = store.AttendanceRecord{
			SubjectID: rec.SubjectID,
			Date:      rec.Date,
			FirstSeen: fromMs(firstMs),
			ActorID:   stringFromNull(actorID),
		}
		return nil
	})
	if err != nil {
		return store.AttendanceRecord{}, false, err
	}
	return stored, created, nil
}

func (s *AttendanceStore) ListByDate(ctx context.Context, date string) ([]store.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT subject_id, first_seen_ms, actor_id FROM attendance
WHERE date = ?
ORDER BY first_seen_ms ASC, subject_id ASC;
`, date)
	if err != nil {
		return nil, fmt.Errorf("ListByDate query: %w", err)
	}
	defer rows.Close()

	var out []store.AttendanceRecord
	for rows.Next() {
		var (
			rec     store.AttendanceRecord
			firstMs int64
			actorID sql.NullString
		)
		if err := rows.Scan(&rec.SubjectID, &firstMs, &actorID); err != nil {
			return nil, fmt.Errorf("ListByDate scan: %w", err)
		}
		rec.Date = date
		rec.FirstSeen = fromMs(firstMs)
		rec.ActorID = stringFromNull(actorID)
		out = append(out, rec)
	}
	return out, rows.Err()
}
