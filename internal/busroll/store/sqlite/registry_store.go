package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	dbpkg "github.com/BrandonDHaskell/busroll/internal/db"
)

const subjectColumns = `subject_id, name, bus_stop, group_id, on_leave, created_at_ms, deleted_at_ms`

type RegistryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRegistryStore(db *sql.DB, writer *dbpkg.Worker) *RegistryStore {
	return &RegistryStore{db: db, writer: writer}
}

func (s *RegistryStore) GetSubject(ctx context.Context, subjectID string) (store.SubjectRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE subject_id = ?;`, subjectID)
	rec, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SubjectRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.SubjectRecord{}, fmt.Errorf("GetSubject: %w", err)
	}
	return rec, nil
}

func (s *RegistryStore) ListSubjects(ctx context.Context, groupID string) ([]store.SubjectRecord, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE deleted_at_ms IS NULL`
	var args []any
	if groupID != "" {
		query += ` AND group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY subject_id;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListSubjects query: %w", err)
	}
	defer rows.Close()

	var out []store.SubjectRecord
	for rows.Next() {
		rec, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSubjects scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RegistryStore) PutSubject(ctx context.Context, rec store.SubjectRecord) error {
	rec.SubjectID = strings.TrimSpace(rec.SubjectID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var deleted sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT deleted_at_ms FROM subjects WHERE subject_id = ?;`, rec.SubjectID).Scan(&deleted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx, `
INSERT INTO subjects(subject_id, name, bus_stop, group_id, on_leave, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, rec.SubjectID, rec.Name, rec.BusStop, nullString(rec.GroupID), boolInt(rec.OnLeave), toMs(rec.CreatedAt), nowMs); err != nil {
				return fmt.Errorf("PutSubject insert: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("PutSubject lookup: %w", err)
		case !deleted.Valid:
			return store.ErrAlreadyExists
		}

		// Revive a soft-deleted subject; its history stays attached.
		if _, err := tx.ExecContext(ctx, `
UPDATE subjects
SET name = ?, bus_stop = ?, group_id = ?, on_leave = ?, deleted_at_ms = NULL, updated_at_ms = ?
WHERE subject_id = ?;
`, rec.Name, rec.BusStop, nullString(rec.GroupID), boolInt(rec.OnLeave), nowMs, rec.SubjectID); err != nil {
			return fmt.Errorf("PutSubject revive: %w", err)
		}
		return nil
	})
}

func (s *RegistryStore) SetSubjectGroup(ctx context.Context, subjectID, groupID string) error {
	return s.updateLiveSubject(ctx, "SetSubjectGroup", `group_id = ?`, subjectID, nullString(groupID))
}

func (s *RegistryStore) SetSubjectLeave(ctx context.Context, subjectID string, onLeave bool) error {
	return s.updateLiveSubject(ctx, "SetSubjectLeave", `on_leave = ?`, subjectID, boolInt(onLeave))
}

func (s *RegistryStore) DeleteSubject(ctx context.Context, subjectID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.updateLiveSubject(ctx, "DeleteSubject", `deleted_at_ms = ?`, subjectID, toMs(at))
}

func (s *RegistryStore) updateLiveSubject(ctx context.Context, op, set, subjectID string, value any) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE subjects SET `+set+`, updated_at_ms = ?
WHERE subject_id = ? AND deleted_at_ms IS NULL;
`, value, time.Now().UTC().UnixMilli(), subjectID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s rows affected: %w", op, err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *RegistryStore) GetActor(ctx context.Context, actorID string) (store.ActorRecord, error) {
	var (
		rec       store.ActorRecord
		kind      string
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT actor_id, name, group_id, kind, created_at_ms FROM actors WHERE actor_id = ?;
`, actorID).Scan(&rec.ActorID, &rec.Name, &rec.GroupID, &kind, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ActorRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ActorRecord{}, fmt.Errorf("GetActor: %w", err)
	}
	rec.Kind = store.ActorKind(kind)
	rec.CreatedAt = fromMs(createdMs)
	return rec, nil
}

func (s *RegistryStore) ListActors(ctx context.Context, groupID string) ([]store.ActorRecord, error) {
	query := `SELECT actor_id, name, group_id, kind, created_at_ms FROM actors`
	var args []any
	if groupID != "" {
		query += ` WHERE group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY actor_id;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListActors query: %w", err)
	}
	defer rows.Close()

	var out []store.ActorRecord
	for rows.Next() {
		var (
			rec       store.ActorRecord
			kind      string
			createdMs int64
		)
		if err := rows.Scan(&rec.ActorID, &rec.Name, &rec.GroupID, &kind, &createdMs); err != nil {
			return nil, fmt.Errorf("ListActors scan: %w", err)
		}
		rec.Kind = store.ActorKind(kind)
		rec.CreatedAt = fromMs(createdMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RegistryStore) PutActor(ctx context.Context, rec store.ActorRecord) error {
	rec.ActorID = strings.TrimSpace(rec.ActorID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Kind == "" {
		rec.Kind = store.ActorDriver
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO actors(actor_id, name, group_id, kind, created_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(actor_id) DO NOTHING;
`, rec.ActorID, rec.Name, rec.GroupID, string(rec.Kind), toMs(rec.CreatedAt))
		if err != nil {
			return fmt.Errorf("PutActor insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("PutActor rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrAlreadyExists
		}
		return nil
	})
}

func scanSubject(r rowScanner) (store.SubjectRecord, error) {
	var (
		rec       store.SubjectRecord
		groupID   sql.NullString
		onLeave   int
		createdMs int64
		deletedMs sql.NullInt64
	)
	if err := r.Scan(&rec.SubjectID, &rec.Name, &rec.BusStop, &groupID, &onLeave, &createdMs, &deletedMs); err != nil {
		return store.SubjectRecord{}, err
	}
	rec.GroupID = stringFromNull(groupID)
	rec.OnLeave = onLeave != 0
	rec.CreatedAt = fromMs(createdMs)
	if deletedMs.Valid {
		t := fromMs(deletedMs.Int64)
		rec.DeletedAt = &t
	}
	return rec, nil
}
