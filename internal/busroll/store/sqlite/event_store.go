package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	dbpkg "github.com/BrandonDHaskell/busroll/internal/db"
)

const eventColumns = `seq, event_id, actor_id, subject_id, group_id, action, ts_ms, source`

type EventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewEventStore(db *sql.DB, writer *dbpkg.Worker) *EventStore {
	return &EventStore{db: db, writer: writer}
}

// Append performs the compare-and-append inside a single writer
// transaction: read the subject's latest action, refuse a repeat, insert.
func (s *EventStore) Append(ctx context.Context, rec store.EventRecord) (store.EventRecord, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Timestamp = fromMs(toMs(rec.Timestamp))
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	if rec.Source == "" {
		rec.Source = "manual"
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		current := store.ActionOut
		var last string
		err := tx.QueryRowContext(ctx, `
SELECT action FROM presence_events
WHERE subject_id = ?
ORDER BY ts_ms DESC, seq DESC
LIMIT 1;
`, rec.SubjectID).Scan(&last)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("Append read latest: %w", err)
		default:
			current = store.Action(last)
		}
		if current == rec.Action {
			return store.ErrStateConflict
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO presence_events(event_id, actor_id, subject_id, group_id, action, ts_ms, source)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, rec.EventID, rec.ActorID, rec.SubjectID, rec.GroupID, string(rec.Action), toMs(rec.Timestamp), rec.Source)
		if err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Append last insert id: %w", err)
		}
		rec.Seq = seq
		return nil
	})
	if err != nil {
		return store.EventRecord{}, err
	}
	return rec, nil
}

func (s *EventStore) Latest(ctx context.Context, subjectID string) (store.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+eventColumns+` FROM presence_events
WHERE subject_id = ?
ORDER BY ts_ms DESC, seq DESC
LIMIT 1;
`, subjectID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.EventRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.EventRecord{}, fmt.Errorf("Latest: %w", err)
	}
	return ev, nil
}

func (s *EventStore) LatestForSubjects(ctx context.Context, subjectIDs []string) (map[string]store.EventRecord, error) {
	out := make(map[string]store.EventRecord, len(subjectIDs))

	for _, ids := range chunk(subjectIDs, maxInParams) {
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+` FROM presence_events e
WHERE e.subject_id IN (`+placeholders(len(ids))+`)
  AND e.seq = (
    SELECT e2.seq FROM presence_events e2
    WHERE e2.subject_id = e.subject_id
    ORDER BY e2.ts_ms DESC, e2.seq DESC
    LIMIT 1
  );
`, args...)
		if err != nil {
			return nil, fmt.Errorf("LatestForSubjects query: %w", err)
		}
		evs, err := scanEvents(rows)
		if err != nil {
			return nil, fmt.Errorf("LatestForSubjects scan: %w", err)
		}
		for _, ev := range evs {
			out[ev.SubjectID] = ev
		}
	}
	return out, nil
}

func (s *EventStore) List(ctx context.Context, q store.EventQuery) ([]store.EventRecord, error) {
	var (
		where []string
		args  []any
	)
	if len(q.ActorIDs) > 0 {
		where = append(where, "actor_id IN ("+placeholders(len(q.ActorIDs))+")")
		for _, id := range q.ActorIDs {
			args = append(args, id)
		}
	}
	if len(q.SubjectIDs) > 0 {
		where = append(where, "subject_id IN ("+placeholders(len(q.SubjectIDs))+")")
		for _, id := range q.SubjectIDs {
			args = append(args, id)
		}
	}
	if !q.From.IsZero() {
		where = append(where, "ts_ms >= ?")
		args = append(args, toMs(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "ts_ms < ?")
		args = append(args, toMs(q.To))
	}

	query := "SELECT " + eventColumns + " FROM presence_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Newest {
		query += " ORDER BY ts_ms DESC, seq DESC"
	} else {
		query += " ORDER BY ts_ms ASC, seq ASC"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	evs, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("List scan: %w", err)
	}
	return evs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (store.EventRecord, error) {
	var (
		ev     store.EventRecord
		action string
		tsMs   int64
	)
	if err := r.Scan(&ev.Seq, &ev.EventID, &ev.ActorID, &ev.SubjectID, &ev.GroupID, &action, &tsMs, &ev.Source); err != nil {
		return store.EventRecord{}, err
	}
	ev.Action = store.Action(action)
	ev.Timestamp = fromMs(tsMs)
	return ev, nil
}

func scanEvents(rows *sql.Rows) ([]store.EventRecord, error) {
	defer rows.Close()
	var out []store.EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
