package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store/memory"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// day is the fixed "today" used by the test clock.
var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// recordingInvalidator collects gallery invalidation reasons and evictions.
type recordingInvalidator struct {
	mu      sync.Mutex
	reasons []string
	evicted []string
}

func (r *recordingInvalidator) InvalidateGallery(reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
}

func (r *recordingInvalidator) EvictSubject(subjectID string) {
	r.mu.Lock()
	r.evicted = append(r.evicted, subjectID)
	r.mu.Unlock()
}

func (r *recordingInvalidator) evictions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.evicted...)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type testEnv struct {
	events     store.EventStore
	attendance store.AttendanceStore
	regStore   store.RegistryStore
	mem        *memory.Stores // nil when backed by SQLite

	clock       *fakeClock
	opts        service.Options
	invalidator *recordingInvalidator

	engine   *service.PresenceEngine
	ledger   *service.AttendanceLedger
	reporter *service.SummaryReporter
	registry *service.Registry
}

// newTestEnv wires every service over in-memory stores with a fixed clock
// at 10:00 on day.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ms := memory.New()
	env := newEnvWithStores(t, ms.Events, ms.Attendance, ms.Registry)
	env.mem = ms
	return env
}

func newEnvWithStores(t *testing.T, es store.EventStore, as store.AttendanceStore, rs store.RegistryStore) *testEnv {
	t.Helper()
	clock := &fakeClock{t: at(10, 0)}
	opts := service.Options{
		Location:     time.UTC,
		StoreTimeout: 5 * time.Second,
		Now:          clock.Now,
		Logger:       silentLogger(),
	}
	inv := &recordingInvalidator{}
	engine := service.NewPresenceEngine(es, rs, opts)
	return &testEnv{
		events:      es,
		attendance:  as,
		regStore:    rs,
		clock:       clock,
		opts:        opts,
		invalidator: inv,
		engine:      engine,
		ledger:      service.NewAttendanceLedger(as, rs, opts),
		reporter:    service.NewSummaryReporter(es, rs, engine, opts),
		registry:    service.NewRegistry(rs, inv, opts),
	}
}

// seed registers actorID on groupID and the given subjects assigned to it.
func (e *testEnv) seed(t *testing.T, groupID, actorID string, subjects ...string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.registry.AddActor(ctx, service.ActorInput{ActorID: actorID, GroupID: groupID}); err != nil {
		t.Fatalf("AddActor %s: %v", actorID, err)
	}
	for _, sid := range subjects {
		if _, err := e.registry.AddSubject(ctx, service.SubjectInput{SubjectID: sid, GroupID: groupID}); err != nil {
			t.Fatalf("AddSubject %s: %v", sid, err)
		}
	}
}

func wantCode(t *testing.T, err error, sentinel *apperr.Error) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %s, got %v", sentinel.Code, err)
	}
}

func mustOnBoard(t *testing.T, e *testEnv, subjectID string, want bool) {
	t.Helper()
	got, err := e.engine.IsOnBoard(context.Background(), subjectID)
	if err != nil {
		t.Fatalf("IsOnBoard(%s): %v", subjectID, err)
	}
	if got != want {
		t.Fatalf("IsOnBoard(%s) = %v, want %v", subjectID, got, want)
	}
}

func serviceSubject(id, groupID string) service.SubjectInput {
	return service.SubjectInput{SubjectID: id, GroupID: groupID}
}

func actorInput(id, groupID string) service.ActorInput {
	return service.ActorInput{ActorID: id, GroupID: groupID}
}
