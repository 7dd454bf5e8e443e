package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
)

func (s *Server) handleRecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req types.AttendanceRequest
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	at, err := parseAt(req.At)
	if err != nil {
		s.writeServiceError(w, r, "attendance", err)
		return
	}

	out, err := s.ledger.RecordAttendance(r.Context(), req.SubjectID, at)
	if err != nil {
		s.writeServiceError(w, r, "attendance", err)
		return
	}
	status := http.StatusOK
	if out.Status == service.AttendanceCreated {
		status = http.StatusCreated
	}
	respond(w, r, status, outcomeToType(out))
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	recs, err := s.ledger.ListAttendance(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, r, "list attendance", err)
		return
	}

	resp := types.AttendanceListResponse{Date: date, Records: make([]types.AttendanceRecord, 0, len(recs))}
	for _, rec := range recs {
		resp.Records = append(resp.Records, attendanceToType(rec))
		resp.Date = rec.Date
	}
	respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleAbsentees(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	date := r.URL.Query().Get("date")
	subs, err := s.ledger.Absentees(r.Context(), groupID, date)
	if err != nil {
		s.writeServiceError(w, r, "absentees", err)
		return
	}
	respond(w, r, http.StatusOK, types.AbsenteesResponse{GroupID: groupID, Date: date, Subjects: subjectsToType(subs)})
}
