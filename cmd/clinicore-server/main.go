package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"clinicore/backend/internal/config"
	"clinicore/backend/internal/domain"
	"clinicore/backend/internal/scheduling"
	"clinicore/backend/internal/store/postgres"
	"clinicore/backend/internal/transport/rest"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "clinicore-server").
		Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("config load failed")
		os.Exit(1)
	}
	logger = logger.Level(parseLogLevel(cfg.LogLevel))

	logger.Info().
		Str("http_addr", cfg.HTTPAddr()).
		Str("log_level", cfg.LogLevel).
		Msg("starting")

	logDatabaseTarget(logger, cfg.DatabaseURL)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			logger.Warn().Err(err).Msg("database close failed")
		}
	}()

	repo := postgres.NewAppointmentRepo(db)
	checker := scheduling.NewConflictChecker(repo, scheduling.ConflictCheckerConfig{
		QueryTimeout: cfg.ConflictQueryTimeout,
		Strict:       cfg.ConflictStrict,
	}, logger)
	svc := scheduling.NewService(repo, checker, scheduling.Config{
		Horizon: domain.Horizon{
			Window:         time.Duration(cfg.HorizonDays) * 24 * time.Hour,
			MaxOccurrences: cfg.MaxOccurrences,
		},
		ConflictWorkers: cfg.ConflictWorkers,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.ContextTimeout(cfg.HTTPRequestTimeout))

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	rest.NewHandler(svc, logger).Register(e.Group("/v1"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.HTTPAddr())
	}()

	logger.Info().Str("http_addr", cfg.HTTPAddr()).Msg("http server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutdown(logger, e, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped with error")
			os.Exit(1)
		}
	}
}

func shutdown(logger zerolog.Logger, e *echo.Echo, timeout time.Duration) {
	logger.Info().Dur("timeout", timeout).Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed; forcing close")
		_ = e.Close()
		return
	}
	logger.Info().Msg("http server stopped")
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func logDatabaseTarget(logger zerolog.Logger, databaseURL string) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		logger.Info().Str("db_url", "invalid").Msg("connecting to database")
		return
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	logger.Info().
		Str("db_host", host).
		Str("db_port", port).
		Str("db_name", name).
		Msg("connecting to database")
}
