// Package sqlite implements the busroll stores on modernc.org/sqlite.
// Reads go straight to *sql.DB; every write runs inside a db.Worker job.
package sqlite

import (
	"database/sql"
	"strings"
	"time"
)

// maxInParams bounds the number of placeholders per IN (...) clause.
const maxInParams = 500

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func toMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stringFromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
