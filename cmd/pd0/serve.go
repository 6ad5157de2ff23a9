package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/current.report/internal/api"
	"github.com/banshee-data/current.report/internal/config"
	"github.com/banshee-data/current.report/internal/db"
	"github.com/banshee-data/current.report/internal/grpcserver"
	"github.com/banshee-data/current.report/internal/monitoring"
)

func (a *app) serve(args []string) error {
	fs := a.newFlagSet("serve")
	configFile := fs.String("config", "", "Path to JSON decoder config")
	listen := fs.String("listen", ":8080", "HTTP listen address")
	dbPath := fs.String("db", "", "Database path (default from config)")
	grpcListen := fs.String("grpc-listen", "", "Also serve gRPC health checks on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := a.loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *dbPath == "" {
		*dbPath = cfg.GetDBPath()
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if *grpcListen != "" {
		health := grpcserver.New(*grpcListen)
		if err := health.Start(); err != nil {
			return err
		}
		defer health.Stop()
		health.SetServing(database.Ping() == nil)
	}

	handler, err := newServeHandler(database, cfg)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:    *listen,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	monitoring.Logf("serving %s on %s", *dbPath, *listen)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-a.ctx.Done():
	}

	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// newServeHandler mounts the JSON API and the localhost-only debug routes.
func newServeHandler(database *db.DB, cfg *config.DecoderConfig) (http.Handler, error) {
	mux := api.NewServer(database, cfg).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return api.LoggingMiddleware(mux), nil
}
