package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
)

// handleSearchSubjects lists subjects, filtered by ?q= (name search) or
// ?group_id=.
func (s *Server) handleSearchSubjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		subs []store.SubjectRecord
		err  error
	)
	if groupID := q.Get("group_id"); groupID != "" && q.Get("q") == "" {
		subs, err = s.registry.ListSubjects(r.Context(), groupID)
	} else {
		subs, err = s.registry.SearchSubjects(r.Context(), q.Get("q"))
	}
	if err != nil {
		s.writeServiceError(w, r, "list subjects", err)
		return
	}
	respond(w, r, http.StatusOK, types.SubjectsResponse{Subjects: subjectsToType(subs)})
}

func (s *Server) handleAddSubject(w http.ResponseWriter, r *http.Request) {
	var req types.Subject
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	rec, err := s.registry.AddSubject(r.Context(), service.SubjectInput{
		SubjectID: req.SubjectID,
		Name:      req.Name,
		BusStop:   req.BusStop,
		GroupID:   req.GroupID,
		OnLeave:   req.OnLeave,
	})
	if err != nil {
		s.writeServiceError(w, r, "add subject", err)
		return
	}
	respond(w, r, http.StatusCreated, subjectToType(rec))
}

func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.GetSubject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "get subject", err)
		return
	}
	respond(w, r, http.StatusOK, subjectToType(rec))
}

func (s *Server) handleRemoveSubject(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveSubject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, "remove subject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req types.LeaveRequest
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.registry.SetLeave(r.Context(), id, req.OnLeave); err != nil {
		s.writeServiceError(w, r, "leave", err)
		return
	}
	s.respondSubject(w, r, id)
}

func (s *Server) handleAssignGroup(w http.ResponseWriter, r *http.Request) {
	var req types.GroupAssignment
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.registry.AssignGroup(r.Context(), id, req.GroupID); err != nil {
		s.writeServiceError(w, r, "assign group", err)
		return
	}
	s.respondSubject(w, r, id)
}

func (s *Server) respondSubject(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.registry.GetSubject(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get subject", err)
		return
	}
	respond(w, r, http.StatusOK, subjectToType(rec))
}

func (s *Server) handleListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := s.registry.ListActors(r.Context(), r.URL.Query().Get("group_id"))
	if err != nil {
		s.writeServiceError(w, r, "list actors", err)
		return
	}
	resp := types.ActorsResponse{Actors: make([]types.Actor, 0, len(actors))}
	for _, a := range actors {
		resp.Actors = append(resp.Actors, actorToType(a))
	}
	respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleAddActor(w http.ResponseWriter, r *http.Request) {
	var req types.Actor
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	rec, err := s.registry.AddActor(r.Context(), service.ActorInput{
		ActorID: req.ActorID,
		Name:    req.Name,
		GroupID: req.GroupID,
		Kind:    store.ActorKind(req.Kind),
	})
	if err != nil {
		s.writeServiceError(w, r, "add actor", err)
		return
	}
	respond(w, r, http.StatusCreated, actorToType(rec))
}
