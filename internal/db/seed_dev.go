package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// GroupID is the bus every seeded row is bound to.
	GroupID string
	// Subjects are created as "<id>" with an empty name when missing.
	Subjects []string
}

// SeedDev creates a starter bus with one driver, one recognizer camera, and
// the requested subjects.  Existing rows are left untouched.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()
	if opt.GroupID == "" {
		opt.GroupID = "bus-01"
	}

	actors := []struct{ id, name, kind string }{
		{"driver-" + opt.GroupID, "Dev Driver", "driver"},
		{"camera-" + opt.GroupID, "Dev Door Camera", "recognizer"},
	}
	for _, a := range actors {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO actors(actor_id, name, group_id, kind, created_at_ms)
VALUES (?, ?, ?, ?, ?);`, a.id, a.name, opt.GroupID, a.kind, now); err != nil {
			return fmt.Errorf("seed actor %s: %w", a.id, err)
		}
	}

	for _, sid := range opt.Subjects {
		if _, err := db.ExecContext(ctx, `
INSERT INTO subjects(subject_id, group_id, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(subject_id) DO NOTHING;`, sid, opt.GroupID, now, now); err != nil {
			return fmt.Errorf("seed subject %s: %w", sid, err)
		}
	}

	return nil
}
