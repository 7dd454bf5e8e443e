package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/busroll/internal/config"
	"github.com/BrandonDHaskell/busroll/internal/grpcapi"
	"github.com/BrandonDHaskell/busroll/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTPAddr,
		Engine:   a.engine,
		Ledger:   a.ledger,
		Reporter: a.reporter,
		Registry: a.registrar,
		Capture:  a.capture,
		Gallery:  a.gallery,
	})
	grpcSrv := grpcapi.NewServer(grpcapi.Dependencies{Logger: logger, Addr: cfg.GRPCAddr, Presence: a.engine})

	// Any installed gallery, from startup or a later refresh, is servable.
	a.gallery.OnInstalled(func() { grpcSrv.SetGalleryReady(true) })

	// Captures match against an empty gallery until this finishes.
	go func() {
		if err := a.gallery.Init(ctx); err != nil {
			logger.Printf("gallery init error: %v", err)
		}
	}()
	a.refresher.Start(ctx)
	defer a.refresher.Stop()

	go func() {
		logger.Printf("http listening on %s (store=%s)", cfg.HTTPAddr, cfg.Store)
		if err := httpSrv.Start(); err != nil {
			logger.Printf("http server error: %v", err)
			stop()
		}
	}()
	go func() {
		logger.Printf("grpc listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Start(); err != nil {
			logger.Printf("grpc server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = grpcSrv.Shutdown(shutdownCtx)
	return nil
}
