package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	sqlitestore "github.com/BrandonDHaskell/busroll/internal/busroll/store/sqlite"
	"github.com/BrandonDHaskell/busroll/internal/db"
)

// newSQLiteEnv wires the services over a private in-memory SQLite
// database with the production schema.
func newSQLiteEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	return newEnvWithStores(t,
		sqlitestore.NewEventStore(conn, w),
		sqlitestore.NewAttendanceStore(conn, w),
		sqlitestore.NewRegistryStore(conn, w),
	)
}
