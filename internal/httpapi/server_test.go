package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store/memory"
	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
	"github.com/BrandonDHaskell/busroll/internal/httpapi"
)

var morning = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
// Group bus-01 has driver drv-01 and subjects S1 and S2; bus-02 has S3.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ms := memory.New()
	opts := service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return morning },
		Logger:   log.New(io.Discard, "", 0),
	}
	engine := service.NewPresenceEngine(ms.Events, ms.Registry, opts)
	ledger := service.NewAttendanceLedger(ms.Attendance, ms.Registry, opts)
	registry := service.NewRegistry(ms.Registry, nil, opts)

	ctx := context.Background()
	for _, a := range []service.ActorInput{
		{ActorID: "drv-01", GroupID: "bus-01"},
		{ActorID: "cam-01", GroupID: "bus-01", Kind: "recognizer"},
	} {
		if _, err := registry.AddActor(ctx, a); err != nil {
			t.Fatalf("AddActor: %v", err)
		}
	}
	for _, sub := range []service.SubjectInput{
		{SubjectID: "S1", Name: "Zoë Novák", GroupID: "bus-01"},
		{SubjectID: "S2", Name: "Adam Berg", GroupID: "bus-01"},
		{SubjectID: "S3", Name: "Eva Lind", GroupID: "bus-02"},
	} {
		if _, err := registry.AddSubject(ctx, sub); err != nil {
			t.Fatalf("AddSubject: %v", err)
		}
	}

	g, err := identity.NewGallery([]identity.Entry{
		{SubjectID: "S1", Vector: []float32{1, 0, 0}},
		{SubjectID: "S2", Vector: []float32{0, 1, 0}},
	}, identity.GalleryOptions{})
	if err != nil {
		t.Fatalf("NewGallery: %v", err)
	}
	matcher := identity.NewMatcher(0)
	matcher.Swap(g)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   log.New(io.Discard, "", 0),
		Addr:     ":0",
		Engine:   engine,
		Ledger:   ledger,
		Reporter: service.NewSummaryReporter(ms.Events, ms.Registry, engine, opts),
		Registry: registry,
		Capture:  service.NewCapturePipeline(matcher, engine, ledger, ms.Registry, opts),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
	var e types.ErrorResponse
	decodeBody(t, resp, &e)
	if e.OK || e.Error != code {
		t.Errorf("expected error %q, got %+v", code, e)
	}
}

// ── Presence ─────────────────────────────────────────────────────────────────

func TestBoard_CreatesEvent(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var ev types.Event
	decodeBody(t, resp, &ev)
	if ev.Action != "IN" || ev.SubjectID != "S1" || ev.GroupID != "bus-01" || ev.Source != "manual" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.EventID == "" || ev.Seq == 0 {
		t.Errorf("expected event id and seq, got %+v", ev)
	}
	if ev.Timestamp != "2026-03-02T07:30:00Z" {
		t.Errorf("expected clock timestamp, got %q", ev.Timestamp)
	}

	var ob types.OnBoardResponse
	decodeBody(t, get(t, ts.URL+"/v1/subjects/S1/on_board"), &ob)
	if !ob.OnBoard {
		t.Error("expected S1 on board")
	}
}

func TestBoard_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	postJSON(t, ts.URL+"/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S1"}`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"already on board", "/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S1"}`, http.StatusConflict, "already_on_board"},
		{"not on board", "/v1/presence/alight", `{"actor_id":"drv-01","subject_id":"S2"}`, http.StatusConflict, "not_on_board"},
		{"wrong group", "/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S3"}`, http.StatusForbidden, "wrong_group"},
		{"unknown subject", "/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S9"}`, http.StatusNotFound, "unknown_subject"},
		{"unknown actor", "/v1/presence/board", `{"actor_id":"drv-09","subject_id":"S1"}`, http.StatusNotFound, "unknown_actor"},
		{"empty subject", "/v1/presence/board", `{"actor_id":"drv-01","subject_id":""}`, http.StatusBadRequest, "invalid_input"},
		{"bad timestamp", "/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S2","at":"yesterday"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown field", "/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S2","extra":1}`, http.StatusBadRequest, "bad_body"},
		{"not json", "/v1/presence/board", `{bad`, http.StatusBadRequest, "bad_body"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, postJSON(t, ts.URL+tc.path, tc.body), tc.status, tc.code)
		})
	}
}

func TestBoard_ProtobufStructBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := structpb.NewStruct(map[string]any{"actor_id": "drv-01", "subject_id": "S2"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	data, err := proto.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(ts.URL+"/v1/presence/board", "application/x-protobuf", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf response, got %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := out.GetFields()
	if fields["action"].GetStringValue() != "IN" || fields["subject_id"].GetStringValue() != "S2" {
		t.Errorf("unexpected response: %v", out.AsMap())
	}
}

func TestRosterAndSummary(t *testing.T) {
	ts := newTestServer(t)
	postJSON(t, ts.URL+"/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S2"}`)
	postJSON(t, ts.URL+"/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S1"}`)
	postJSON(t, ts.URL+"/v1/presence/alight", `{"actor_id":"drv-01","subject_id":"S2"}`)

	var roster types.RosterResponse
	decodeBody(t, get(t, ts.URL+"/v1/groups/bus-01/roster"), &roster)
	if roster.Count != 1 || len(roster.Subjects) != 1 || roster.Subjects[0] != "S1" {
		t.Errorf("expected roster [S1], got %+v", roster)
	}

	var sum types.SummaryResponse
	decodeBody(t, get(t, ts.URL+"/v1/groups/bus-01/summary?date=2026-03-02"), &sum)
	if sum.BoardedCount != 2 || sum.AlightedCount != 1 || sum.TotalEvents != 3 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	expectError(t, get(t, ts.URL+"/v1/groups/bus-01/summary?date=02-03-2026"), http.StatusBadRequest, "invalid_input")

	var stats types.StatsResponse
	decodeBody(t, get(t, ts.URL+"/v1/actors/drv-01/stats"), &stats)
	if stats.CurrentlyOnBoard != 1 || stats.BoardedToday != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestActorEvents_Limit(t *testing.T) {
	ts := newTestServer(t)
	postJSON(t, ts.URL+"/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S1","at":"2026-03-02T07:00:00Z"}`)
	postJSON(t, ts.URL+"/v1/presence/board", `{"actor_id":"drv-01","subject_id":"S2","at":"2026-03-02T07:05:00Z"}`)

	var evs types.EventsResponse
	decodeBody(t, get(t, ts.URL+"/v1/actors/drv-01/events?limit=1"), &evs)
	if len(evs.Events) != 1 || evs.Events[0].SubjectID != "S2" {
		t.Errorf("expected newest event for S2, got %+v", evs.Events)
	}

	expectError(t, get(t, ts.URL+"/v1/actors/drv-01/events?limit=abc"), http.StatusBadRequest, "invalid_input")
}

// ── Attendance ───────────────────────────────────────────────────────────────

func TestAttendance_CreatedThenAlreadyRecorded(t *testing.T) {
	ts := newTestServer(t)

	first := postJSON(t, ts.URL+"/v1/attendance", `{"subject_id":"S1","at":"2026-03-02T07:10:00Z"}`)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}
	second := postJSON(t, ts.URL+"/v1/attendance", `{"subject_id":"S1","at":"2026-03-02T09:00:00Z"}`)
	if second.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.StatusCode)
	}
	var out types.AttendanceResponse
	decodeBody(t, second, &out)
	if out.Status != "already_recorded" || out.Record.FirstSeen != "2026-03-02T07:10:00Z" {
		t.Errorf("expected earlier record, got %+v", out)
	}

	var list types.AttendanceListResponse
	decodeBody(t, get(t, ts.URL+"/v1/attendance?date=2026-03-02"), &list)
	if len(list.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(list.Records))
	}

	var abs types.AbsenteesResponse
	decodeBody(t, get(t, ts.URL+"/v1/groups/bus-01/absentees?date=2026-03-02"), &abs)
	if len(abs.Subjects) != 1 || abs.Subjects[0].SubjectID != "S2" {
		t.Errorf("expected absentee S2, got %+v", abs.Subjects)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestSubjects_SearchAndLeave(t *testing.T) {
	ts := newTestServer(t)

	var found types.SubjectsResponse
	decodeBody(t, get(t, ts.URL+"/v1/subjects?q=zoe"), &found)
	if len(found.Subjects) != 1 || found.Subjects[0].SubjectID != "S1" {
		t.Fatalf("expected S1 for folded search, got %+v", found.Subjects)
	}

	resp := postJSON(t, ts.URL+"/v1/subjects/S2/leave", `{"on_leave":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sub types.Subject
	decodeBody(t, resp, &sub)
	if !sub.OnLeave {
		t.Error("expected S2 on leave")
	}

	var abs types.AbsenteesResponse
	decodeBody(t, get(t, ts.URL+"/v1/groups/bus-01/absentees?date=2026-03-02"), &abs)
	if len(abs.Subjects) != 1 || abs.Subjects[0].SubjectID != "S1" {
		t.Errorf("expected only S1 absent, got %+v", abs.Subjects)
	}

	expectError(t, postJSON(t, ts.URL+"/v1/subjects/S9/leave", `{"on_leave":true}`), http.StatusNotFound, "unknown_subject")
}

func TestSubjects_AddAndRemove(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/subjects", `{"subject_id":"S4","name":"Ola","group_id":"bus-02"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	expectError(t, postJSON(t, ts.URL+"/v1/subjects", `{"subject_id":"S4"}`), http.StatusBadRequest, "invalid_input")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/subjects/S4", nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", del.StatusCode)
	}
	expectError(t, get(t, ts.URL+"/v1/subjects/S4"), http.StatusNotFound, "unknown_subject")
}

// ── Capture ──────────────────────────────────────────────────────────────────

func TestCapture_KnownFace(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/capture", `{"actor_id":"cam-01","vector":[0.99,0.02,0]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out types.CaptureResponse
	decodeBody(t, resp, &out)
	if !out.Known || out.SubjectID != "S1" || out.Event == nil || out.Event.Source != "capture" {
		t.Fatalf("unexpected capture result: %+v", out)
	}
	if out.Attendance == nil || out.Attendance.Status != "created" {
		t.Errorf("expected created attendance, got %+v", out.Attendance)
	}

	resp = postJSON(t, ts.URL+"/v1/capture", `{"actor_id":"cam-01","vector":[0.99,0.02,0]}`)
	decodeBody(t, resp, &out)
	if out.PresenceError != "already_on_board" || out.Event != nil {
		t.Errorf("expected already_on_board on repeat, got %+v", out)
	}
}

func TestCapture_UnknownFaceAndBadVector(t *testing.T) {
	ts := newTestServer(t)

	var out types.CaptureResponse
	decodeBody(t, postJSON(t, ts.URL+"/v1/capture", `{"actor_id":"cam-01","vector":[0,0,1]}`), &out)
	if out.Known || out.Attendance != nil {
		t.Errorf("expected unknown face with no writes, got %+v", out)
	}

	expectError(t, postJSON(t, ts.URL+"/v1/capture", `{"actor_id":"cam-01","vector":[]}`), http.StatusBadRequest, "invalid_input")
	expectError(t, postJSON(t, ts.URL+"/v1/capture", `{"actor_id":"cam-01","vector":[1,0,0],"direction":"up"}`), http.StatusBadRequest, "invalid_input")
}

func TestGallery_DisabledWithoutService(t *testing.T) {
	ts := newTestServer(t)
	expectError(t, postJSON(t, ts.URL+"/v1/gallery/rebuild", `{}`), http.StatusServiceUnavailable, "gallery_disabled")
}
