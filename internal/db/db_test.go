package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := openMemDB(t)

	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, conn); err != nil {
			t.Fatalf("Migrate pass %d: %v", i, err)
		}
	}

	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 applied migration, got %d", n)
	}
}

func TestOpen_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "busroll.db")
	conn, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	var name string
	err = conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='presence_events'").Scan(&name)
	if err != nil {
		t.Fatalf("expected presence_events table: %v", err)
	}
}

func TestWorker_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	conn := openMemDB(t)
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	w := NewWorker(conn)
	defer w.Close()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO subjects(subject_id, created_at_ms, updated_at_ms) VALUES ('S1', 0, 0);`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM subjects").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}
}

func TestWorker_CancelWhileRunningReportsTransactionOutcome(t *testing.T) {
	conn := openMemDB(t)
	if err := Migrate(context.Background(), conn); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	w := NewWorker(conn)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO subjects(subject_id, created_at_ms, updated_at_ms) VALUES ('S1', 0, 0);`); err != nil {
				return err
			}
			close(started)
			<-release
			finished.Store(true)
			return nil
		})
	}()

	<-started
	cancel()
	select {
	case err := <-result:
		t.Fatalf("Do returned %v before the running transaction finished", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	err := <-result
	if !finished.Load() {
		t.Fatal("expected fn to finish before Do returned")
	}

	var n int
	if qerr := conn.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM subjects").Scan(&n); qerr != nil {
		t.Fatalf("count: %v", qerr)
	}
	if (err == nil) != (n == 1) {
		t.Errorf("Do result %v disagrees with store: %d rows", err, n)
	}
}

func TestWorker_CancelWhileQueuedSkipsJob(t *testing.T) {
	conn := openMemDB(t)
	w := NewWorker(conn)
	defer w.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := make(chan error, 1)
	go func() {
		blocker <- w.Do(context.Background(), func(context.Context, *sql.Tx) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	queued := make(chan error, 1)
	go func() {
		queued <- w.Do(ctx, func(context.Context, *sql.Tx) error {
			ran.Store(true)
			return nil
		})
	}()
	// Give the job time to reach the queue before its caller gives up.
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-queued; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)
	if err := <-blocker; err != nil {
		t.Fatalf("blocking job: %v", err)
	}

	// Jobs run in order, so this one finishing means the abandoned job was
	// already dequeued.
	if err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if ran.Load() {
		t.Error("abandoned job must not run")
	}
}

func TestWorker_ClosedRejectsJobs(t *testing.T) {
	conn := openMemDB(t)
	w := NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	if !errors.Is(err, ErrWorkerClosed) {
		t.Fatalf("expected ErrWorkerClosed, got %v", err)
	}
}

func TestSeedDev_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := openMemDB(t)
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	opt := SeedDevOptions{GroupID: "bus-07", Subjects: []string{"S1", "S2"}}
	for i := 0; i < 2; i++ {
		if err := SeedDev(ctx, conn, opt); err != nil {
			t.Fatalf("SeedDev pass %d: %v", i, err)
		}
	}

	var subjects, actors int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM subjects WHERE group_id = 'bus-07'").Scan(&subjects); err != nil {
		t.Fatalf("count subjects: %v", err)
	}
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM actors WHERE group_id = 'bus-07'").Scan(&actors); err != nil {
		t.Fatalf("count actors: %v", err)
	}
	if subjects != 2 || actors != 2 {
		t.Errorf("expected 2 subjects and 2 actors, got %d and %d", subjects, actors)
	}
}
