// Package httpapi exposes the presence, attendance, registry, and capture
// operations over HTTP with JSON or protobuf Struct bodies.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
)

type Dependencies struct {
	Logger   *log.Logger
	Addr     string
	Engine   *service.PresenceEngine
	Ledger   *service.AttendanceLedger
	Reporter *service.SummaryReporter
	Registry *service.Registry
	Capture  *service.CapturePipeline
	Gallery  *service.GalleryService // nil disables the gallery routes
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	router     chi.Router

	engine   *service.PresenceEngine
	ledger   *service.AttendanceLedger
	reporter *service.SummaryReporter
	registry *service.Registry
	capture  *service.CapturePipeline
	gallery  *service.GalleryService
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:   d.Logger,
		router:   chi.NewRouter(),
		engine:   d.Engine,
		ledger:   d.Ledger,
		reporter: d.Reporter,
		registry: d.Registry,
		capture:  d.Capture,
		gallery:  d.Gallery,
	}

	s.router.Use(chiMiddleware.RequestID)
	s.router.Use(chiMiddleware.RealIP)
	s.router.Use(loggingMiddleware(d.Logger))
	s.router.Use(chiMiddleware.Recoverer)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/presence/board", s.handleBoard)
		r.Post("/presence/alight", s.handleAlight)

		r.Get("/groups/{id}/roster", s.handleRoster)
		r.Get("/groups/{id}/summary", s.handleSummary)
		r.Get("/groups/{id}/absentees", s.handleAbsentees)

		r.Get("/actors", s.handleListActors)
		r.Post("/actors", s.handleAddActor)
		r.Get("/actors/{id}/events", s.handleActorEvents)
		r.Get("/actors/{id}/stats", s.handleActorStats)

		r.Post("/attendance", s.handleRecordAttendance)
		r.Get("/attendance", s.handleListAttendance)

		r.Get("/subjects", s.handleSearchSubjects)
		r.Post("/subjects", s.handleAddSubject)
		r.Get("/subjects/{id}", s.handleGetSubject)
		r.Delete("/subjects/{id}", s.handleRemoveSubject)
		r.Get("/subjects/{id}/on_board", s.handleOnBoard)
		r.Post("/subjects/{id}/leave", s.handleLeave)
		r.Put("/subjects/{id}/group", s.handleAssignGroup)

		r.Post("/capture", s.handleCapture)
		r.Get("/gallery", s.handleGalleryStatus)
		r.Post("/gallery/rebuild", s.handleGalleryRebuild)
	})
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
