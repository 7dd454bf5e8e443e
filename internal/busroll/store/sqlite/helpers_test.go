package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	sqlitestore "github.com/BrandonDHaskell/busroll/internal/busroll/store/sqlite"
	"github.com/BrandonDHaskell/busroll/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own named in-memory database; shared cache keeps it
	// alive while the pool reopens the underlying connection.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

type testStores struct {
	conn       *sql.DB
	events     *sqlitestore.EventStore
	attendance *sqlitestore.AttendanceStore
	registry   *sqlitestore.RegistryStore
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	return testStores{
		conn:       conn,
		events:     sqlitestore.NewEventStore(conn, w),
		attendance: sqlitestore.NewAttendanceStore(conn, w),
		registry:   sqlitestore.NewRegistryStore(conn, w),
	}
}

// seedBus creates one actor bound to groupID and the given subjects on that
// group so FK constraints on presence_events and attendance hold.
func seedBus(t *testing.T, ts testStores, groupID, actorID string, subjects ...string) {
	t.Helper()
	ctx := context.Background()
	if err := ts.registry.PutActor(ctx, store.ActorRecord{ActorID: actorID, GroupID: groupID}); err != nil {
		t.Fatalf("seed actor %s: %v", actorID, err)
	}
	for _, sid := range subjects {
		if err := ts.registry.PutSubject(ctx, store.SubjectRecord{SubjectID: sid, GroupID: groupID}); err != nil {
			t.Fatalf("seed subject %s: %v", sid, err)
		}
	}
}

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}
