package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericfialkowski/urlshort/config"
	"github.com/ericfialkowski/urlshort/dao"
	"github.com/ericfialkowski/urlshort/handlers"
	"github.com/ericfialkowski/urlshort/logging"
	"github.com/ericfialkowski/urlshort/shortener"
	"github.com/ericfialkowski/urlshort/status"
	"github.com/ericfialkowski/urlshort/telemetry"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, flush, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dao.CreateDao(cfg.Storage, cfg.Connections, logger)
	if err != nil {
		logger.Fatal("couldn't set up storage", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer db.Cleanup()

	otel, err := telemetry.NewMetrics(ctx, logger)
	if err != nil {
		logger.Warn("failed to initialize OpenTelemetry metrics, continuing without", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := otel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down metrics", zap.Error(err))
		}
	}()

	// add status handler
	s := status.NewStatus()
	go s.Watch(ctx, cfg.StatusInterval, db.IsLikelyOk, "All good", "Storage is down")

	//
	// add other handlers
	//
	svc := shortener.NewService(db, cfg.Token, cfg.IdLength)
	instance := uuid.NewString()
	h := handlers.CreateHandlers(svc, s, instance, otel, logger, cfg.LogRequests)

	e := echo.New()
	h.SetUp(e)

	srv := &http.Server{
		Addr:              cfg.BindAddr(),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down http server", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", cfg.BindAddr()),
		zap.String("storage", cfg.Storage),
		zap.Int("id_length", cfg.IdLength),
		zap.String("instance", instance))

	//
	// blocking call, all setup needs to be done before this call
	//
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("error listening", zap.Error(err))
		return
	}
	<-shutdownDone
}
