package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/weiawesome/classroom-signal/internal/config"
	"github.com/weiawesome/classroom-signal/internal/events"
	"github.com/weiawesome/classroom-signal/internal/handler"
	"github.com/weiawesome/classroom-signal/internal/hub"
	"github.com/weiawesome/classroom-signal/internal/metrics"
	"github.com/weiawesome/classroom-signal/internal/service"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
	"github.com/weiawesome/classroom-signal/pkg/pubsub"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting classroom-signal")

	collector := metrics.NewPrometheusCollector()

	// Lifecycle events are optional; signaling works without a bus
	var notifier *events.Notifier
	if cfg.Events.Enabled {
		publisher, err := pubsub.NewPublisher(cfg.Events.PubSub)
		if err != nil {
			logger.Warn().Err(err).Str("driver", cfg.Events.PubSub.Driver).Msg("failed to connect event bus, lifecycle events disabled")
		} else {
			notifier = events.New(publisher, events.Config{
				BufferSize: cfg.Events.BufferSize,
				Timeout:    cfg.Events.Timeout,
			}, collector.EventDropped)
			logger.Info().Str("driver", cfg.Events.PubSub.Driver).Msg("lifecycle events enabled")
		}
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	signalSvc := service.NewSignalService(wsHub, collector, notifier, cfg.Classroom)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go wsHub.Run(hubCtx)

	if err := signalSvc.Start(ctx); err != nil {
		return fmt.Errorf("start signal service: %w", err)
	}

	router := mux.NewRouter()
	handler.NewWSHandler(wsHub, signalSvc, collector, cfg.WebSocket).RegisterRoutes(router)
	handler.NewHTTPHandler(wsHub).RegisterRoutes(router)
	handler.NewICEHandler(cfg.WebRTC).RegisterRoutes(router)
	router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	router.Use(pkglog.HTTPMiddleware(logger, "/health", "/metrics"))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("ws_path", cfg.WebSocket.Path).Msg("classroom-signal listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stopHub()
		<-wsHub.Done()
		signalSvc.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("shutting down classroom-signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stopping the hub disconnects every client; Stop then flushes the
	// resulting room_closed events.
	stopHub()
	<-wsHub.Done()
	if err := signalSvc.Stop(); err != nil {
		logger.Error().Err(err).Msg("failed to close event bus")
	}

	logger.Info().Msg("classroom-signal stopped")
	return nil
}
