package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseAt parses an optional RFC3339 timestamp.  Empty means "now".
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, apperr.New(apperr.CodeInvalidInput, "at must be an RFC3339 timestamp")
	}
	return t, nil
}

// ── Presence ─────────────────────────────────────────────────────────────────

func eventToType(e store.EventRecord) types.Event {
	return types.Event{
		EventID:   e.EventID,
		Seq:       e.Seq,
		ActorID:   e.ActorID,
		SubjectID: e.SubjectID,
		GroupID:   e.GroupID,
		Action:    string(e.Action),
		Timestamp: formatTime(e.Timestamp),
		Source:    e.Source,
	}
}

func eventsToType(evs []store.EventRecord) []types.Event {
	out := make([]types.Event, 0, len(evs))
	for _, e := range evs {
		out = append(out, eventToType(e))
	}
	return out
}

// ── Attendance ───────────────────────────────────────────────────────────────

func attendanceToType(a store.AttendanceRecord) types.AttendanceRecord {
	return types.AttendanceRecord{
		SubjectID: a.SubjectID,
		Date:      a.Date,
		FirstSeen: formatTime(a.FirstSeen),
		ActorID:   a.ActorID,
	}
}

func outcomeToType(o service.AttendanceOutcome) types.AttendanceResponse {
	return types.AttendanceResponse{Status: string(o.Status), Record: attendanceToType(o.Record)}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func subjectToType(s store.SubjectRecord) types.Subject {
	return types.Subject{
		SubjectID: s.SubjectID,
		Name:      s.Name,
		BusStop:   s.BusStop,
		GroupID:   s.GroupID,
		OnLeave:   s.OnLeave,
	}
}

func subjectsToType(ss []store.SubjectRecord) []types.Subject {
	out := make([]types.Subject, 0, len(ss))
	for _, s := range ss {
		out = append(out, subjectToType(s))
	}
	return out
}

func actorToType(a store.ActorRecord) types.Actor {
	return types.Actor{ActorID: a.ActorID, Name: a.Name, GroupID: a.GroupID, Kind: string(a.Kind)}
}

// ── Capture ──────────────────────────────────────────────────────────────────

func captureFromType(req types.CaptureRequest) (service.CaptureRequest, error) {
	at, err := parseAt(req.At)
	if err != nil {
		return service.CaptureRequest{}, err
	}
	return service.CaptureRequest{
		ActorID:   req.ActorID,
		Vector:    req.Vector,
		Direction: service.Direction(req.Direction),
		At:        at,
	}, nil
}

func captureToType(res service.CaptureResult) types.CaptureResponse {
	out := types.CaptureResponse{
		Known:     res.Known,
		SubjectID: res.SubjectID,
		Distance:  res.Distance,
	}
	if res.Event != nil {
		ev := eventToType(*res.Event)
		out.Event = &ev
	}
	if res.PresenceError != "" {
		out.PresenceError = res.PresenceError.Slug()
	}
	if res.Attendance != nil {
		a := outcomeToType(*res.Attendance)
		out.Attendance = &a
	}
	return out
}

func galleryToType(st service.GalleryStatus) types.GalleryResponse {
	noEnc := st.NoEncoding
	if noEnc == nil {
		noEnc = []string{}
	}
	return types.GalleryResponse{
		Entries:    st.Entries,
		Subjects:   st.Subjects,
		Indexed:    st.Indexed,
		BuiltAt:    formatTime(st.BuiltAt),
		NoEncoding: noEnc,
	}
}
