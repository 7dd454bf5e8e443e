package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
)

type transitionFunc func(ctx context.Context, actorID, subjectID string, at time.Time) (store.EventRecord, error)

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "board", s.engine.Board)
}

func (s *Server) handleAlight(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "alight", s.engine.Alight)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op string, fn transitionFunc) {
	var req types.PresenceRequest
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	at, err := parseAt(req.At)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}

	ev, err := fn(r.Context(), req.ActorID, req.SubjectID, at)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	respond(w, r, http.StatusCreated, eventToType(ev))
}

func (s *Server) handleOnBoard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	onBoard, err := s.engine.IsOnBoard(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "on_board", err)
		return
	}
	respond(w, r, http.StatusOK, types.OnBoardResponse{SubjectID: id, OnBoard: onBoard})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	roster, err := s.engine.Roster(r.Context(), groupID)
	if err != nil {
		s.writeServiceError(w, r, "roster", err)
		return
	}
	respond(w, r, http.StatusOK, types.RosterResponse{GroupID: groupID, Subjects: roster, Count: len(roster)})
}

func (s *Server) handleActorEvents(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	evs, err := s.engine.RecentEvents(r.Context(), actorID, limit)
	if err != nil {
		s.writeServiceError(w, r, "events", err)
		return
	}
	respond(w, r, http.StatusOK, types.EventsResponse{ActorID: actorID, Events: eventsToType(evs)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.reporter.DailySummary(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, r, "summary", err)
		return
	}
	respond(w, r, http.StatusOK, types.SummaryResponse{
		GroupID:       sum.GroupID,
		Date:          sum.Date,
		BoardedCount:  sum.BoardedCount,
		AlightedCount: sum.AlightedCount,
		TotalEvents:   sum.TotalEvents,
	})
}

func (s *Server) handleActorStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.reporter.ActorStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "stats", err)
		return
	}
	respond(w, r, http.StatusOK, types.StatsResponse{
		ActorID:          st.ActorID,
		GroupID:          st.GroupID,
		BoardedToday:     st.BoardedToday,
		AlightedToday:    st.AlightedToday,
		CurrentlyOnBoard: st.CurrentlyOnBoard,
	})
}
