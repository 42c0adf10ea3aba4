package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-embedder/internal/database"
	"media-embedder/internal/handlers"
	"media-embedder/internal/logging"
	"media-embedder/internal/memory"
	"media-embedder/internal/metrics"
	"media-embedder/internal/middleware"
	"media-embedder/internal/startup"
)

func main() {
	startTime := time.Now()

	// Must run before significant allocation
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
	metrics.InitializeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := startup.OpenCache(ctx, config)
	if err != nil {
		startup.LogFatal("Failed to initialize cache database: %v", err)
	}

	stopVips := startup.InitThumbnails(config)
	pipeline, allow := startup.Pipeline(config, db)

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start(ctx)

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(db, db.Path(), time.Minute)
		collector.Start()
	}

	h := handlers.New(pipeline, allow, db)
	h.SetMemoryMonitor(memMonitor)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Embedding a page waits on every link's fetch and decode.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           h.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	select {
	case err := <-serverErr:
		startup.LogFatal("Server error: %v", err)
	case <-ctx.Done():
	}

	h.SetReady(false)
	shutdown(srv, metricsSrv, collector, memMonitor, db, stopVips)
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.Routes(r)
	return r
}

func shutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, mem *memory.Monitor, db *database.Database, stopVips func()) {
	startup.LogShutdownInitiated("signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics stopped")
	}

	mem.Stop()
	stopVips()

	startup.LogShutdownStep("Closing cache database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Cache database closed")
	}

	startup.LogShutdownComplete()
}
