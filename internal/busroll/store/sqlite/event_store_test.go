package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

// ═══════════════════════════════════════════════════════════════════════════
// Append: compare-and-append
// ═══════════════════════════════════════════════════════════════════════════

func TestEventStore_Append_AssignsSeqAndID(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1")

	ev, err := ts.events.Append(context.Background(), store.EventRecord{
		ActorID: "drv-01", SubjectID: "S1", GroupID: "bus-01",
		Action: store.ActionIn, Timestamp: at(8, 0),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ev.Seq <= 0 {
		t.Errorf("expected positive seq, got %d", ev.Seq)
	}
	if ev.EventID == "" {
		t.Error("expected event_id to be assigned")
	}
	if ev.Source != "manual" {
		t.Errorf("expected default source=manual, got %q", ev.Source)
	}
}

func TestEventStore_Append_RejectsRepeatedAction(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1")
	ctx := context.Background()

	in := store.EventRecord{ActorID: "drv-01", SubjectID: "S1", GroupID: "bus-01", Action: store.ActionIn, Timestamp: at(8, 0)}
	if _, err := ts.events.Append(ctx, in); err != nil {
		t.Fatalf("first IN: %v", err)
	}
	in.Timestamp = at(8, 5)
	if _, err := ts.events.Append(ctx, in); !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for repeated IN, got %v", err)
	}

	var count int
	if err := ts.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM presence_events`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestEventStore_Append_OutWithoutInConflicts(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1")

	_, err := ts.events.Append(context.Background(), store.EventRecord{
		ActorID: "drv-01", SubjectID: "S1", GroupID: "bus-01",
		Action: store.ActionOut, Timestamp: at(8, 0),
	})
	if !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
}

func TestEventStore_Append_ConcurrentSingleWinner(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1")
	ctx := context.Background()

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.events.Append(ctx, store.EventRecord{
				ActorID: "drv-01", SubjectID: "S1", GroupID: "bus-01",
				Action: store.ActionIn, Timestamp: at(8, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrStateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", n-1, ok, conflicts)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Latest: ordering and tie-break
// ═══════════════════════════════════════════════════════════════════════════

func TestEventStore_Latest_NotFound(t *testing.T) {
	ts := newTestStores(t)
	if _, err := ts.events.Latest(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventStore_Latest_TieBrokenBySeq(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1")
	ctx := context.Background()

	// Same wall-clock timestamp for IN and OUT; seq decides.
	for _, a := range []store.Action{store.ActionIn, store.ActionOut} {
		if _, err := ts.events.Append(ctx, store.EventRecord{
			ActorID: "drv-01", SubjectID: "S1", GroupID: "bus-01", Action: a, Timestamp: at(8, 0),
		}); err != nil {
			t.Fatalf("Append %s: %v", a, err)
		}
	}

	ev, err := ts.events.Latest(ctx, "S1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ev.Action != store.ActionOut {
		t.Errorf("expected latest=OUT, got %s", ev.Action)
	}
}

func TestEventStore_LatestForSubjects(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1", "S2", "S3")
	ctx := context.Background()

	steps := []struct {
		subject string
		action  store.Action
		h, m    int
	}{
		{"S1", store.ActionIn, 8, 0},
		{"S2", store.ActionIn, 8, 1},
		{"S2", store.ActionOut, 9, 0},
		{"S1", store.ActionOut, 9, 1},
		{"S1", store.ActionIn, 15, 0},
	}
	for _, st := range steps {
		if _, err := ts.events.Append(ctx, store.EventRecord{
			ActorID: "drv-01", SubjectID: st.subject, GroupID: "bus-01",
			Action: st.action, Timestamp: at(st.h, st.m),
		}); err != nil {
			t.Fatalf("Append %s %s: %v", st.subject, st.action, err)
		}
	}

	latest, err := ts.events.LatestForSubjects(ctx, []string{"S1", "S2", "S3"})
	if err != nil {
		t.Fatalf("LatestForSubjects: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 subjects with events, got %d", len(latest))
	}
	if latest["S1"].Action != store.ActionIn {
		t.Errorf("S1: expected IN, got %s", latest["S1"].Action)
	}
	if latest["S2"].Action != store.ActionOut {
		t.Errorf("S2: expected OUT, got %s", latest["S2"].Action)
	}
	if _, ok := latest["S3"]; ok {
		t.Error("S3 has no events and should be absent")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// List: filters and order
// ═══════════════════════════════════════════════════════════════════════════

func TestEventStore_List_FiltersAndOrders(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1", "S2")
	seedBus(t, ts, "bus-02", "drv-02", "S9")
	ctx := context.Background()

	appendEv := func(actor, group, subject string, a store.Action, h, m int) {
		t.Helper()
		if _, err := ts.events.Append(ctx, store.EventRecord{
			ActorID: actor, SubjectID: subject, GroupID: group, Action: a, Timestamp: at(h, m),
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	appendEv("drv-01", "bus-01", "S1", store.ActionIn, 8, 0)
	appendEv("drv-01", "bus-01", "S2", store.ActionIn, 8, 5)
	appendEv("drv-02", "bus-02", "S9", store.ActionIn, 8, 7)
	appendEv("drv-01", "bus-01", "S1", store.ActionOut, 9, 0)
	appendEv("drv-01", "bus-01", "S1", store.ActionIn, 23, 59)

	evs, err := ts.events.List(ctx, store.EventQuery{
		ActorIDs: []string{"drv-01"},
		From:     at(8, 0),
		To:       at(23, 0),
		Newest:   true,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[0].Action != store.ActionOut || evs[0].SubjectID != "S1" {
		t.Errorf("expected newest first (S1 OUT), got %s %s", evs[0].SubjectID, evs[0].Action)
	}

	limited, err := ts.events.List(ctx, store.EventQuery{SubjectIDs: []string{"S1"}, Limit: 2})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 || !limited[0].Timestamp.Equal(at(8, 0)) {
		t.Fatalf("expected the two oldest S1 events, got %+v", limited)
	}
}

func TestEventStore_AppendOnlyTriggers(t *testing.T) {
	ts := newTestStores(t)
	seedBus(t, ts, "bus-01", "drv-01", "S1")
	ctx := context.Background()

	if _, err := ts.events.Append(ctx, store.EventRecord{
		ActorID: "drv-01", SubjectID: "S1", GroupID: "bus-01", Action: store.ActionIn, Timestamp: at(8, 0),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := ts.conn.ExecContext(ctx, `UPDATE presence_events SET action = 'OUT'`); err == nil {
		t.Error("expected UPDATE on presence_events to be refused")
	}
	if _, err := ts.conn.ExecContext(ctx, `DELETE FROM presence_events`); err == nil {
		t.Error("expected DELETE on presence_events to be refused")
	}
}
