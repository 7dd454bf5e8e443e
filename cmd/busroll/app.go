package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/BrandonDHaskell/busroll/internal/busroll/encoder"
	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
	"github.com/BrandonDHaskell/busroll/internal/busroll/service"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store/memory"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store/sqlite"
	"github.com/BrandonDHaskell/busroll/internal/config"
	"github.com/BrandonDHaskell/busroll/internal/db"
)

// app is the wired dependency graph shared by the subcommands.
type app struct {
	cfg    config.Config
	logger *log.Logger

	conn   *sql.DB // nil for the memory store
	writer *db.Worker

	events     store.EventStore
	attendance store.AttendanceStore
	registry   store.RegistryStore

	engine    *service.PresenceEngine
	ledger    *service.AttendanceLedger
	reporter  *service.SummaryReporter
	registrar *service.Registry
	capture   *service.CapturePipeline
	gallery   *service.GalleryService
	refresher *service.GalleryRefresher
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "busroll ", log.LstdFlags|log.LUTC)
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	switch cfg.Store {
	case "memory":
		ms := memory.New()
		a.events, a.attendance, a.registry = ms.Events, ms.Attendance, ms.Registry
	default:
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.conn = conn
		a.writer = db.NewWorker(conn)
		a.events = sqlite.NewEventStore(conn, a.writer)
		a.attendance = sqlite.NewAttendanceStore(conn, a.writer)
		a.registry = sqlite.NewRegistryStore(conn, a.writer)
	}

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := service.Options{
		Location:     loc,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	}

	matcher := identity.NewMatcher(cfg.MatchThreshold)
	a.gallery = service.NewGalleryService(
		a.registry,
		encoder.NewDirSource(cfg.GalleryDir, cfg.ImageMaxSize),
		encoder.NewClient(cfg.EncoderURL, cfg.EncoderTimeout),
		matcher,
		service.GalleryConfig{CachePath: cfg.GalleryCache, IndexMinEntries: cfg.IndexMinEntries},
		logger,
	)
	a.refresher = service.NewGalleryRefresher(a.gallery, service.RefresherConfig{IntervalMinutes: cfg.GalleryRefreshMinutes}, logger)

	a.engine = service.NewPresenceEngine(a.events, a.registry, opts)
	a.ledger = service.NewAttendanceLedger(a.attendance, a.registry, opts)
	a.reporter = service.NewSummaryReporter(a.events, a.registry, a.engine, opts)
	a.registrar = service.NewRegistry(a.registry, a.refresher, opts)
	a.capture = service.NewCapturePipeline(matcher, a.engine, a.ledger, a.registry, opts)

	return a, nil
}

// Close stops the writer before closing the connection it uses.
func (a *app) Close() {
	if a.writer != nil {
		a.writer.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}
