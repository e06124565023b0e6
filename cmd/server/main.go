package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vdavid/mailtrace/internal/api"
	"github.com/vdavid/mailtrace/internal/config"
	"github.com/vdavid/mailtrace/internal/db"
	"github.com/vdavid/mailtrace/internal/logging"
	"github.com/vdavid/mailtrace/migrations"
)

func main() {
	log := logging.Component("server")

	cfg, err := config.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("Invalid LOG_LEVEL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.CloseConnection(pool)

	if err := migrations.Run(ctx, pool); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Successfully connected to database")

	handler := api.NewServer(cfg, db.NewEmailStore(pool), api.SessionConfigFromConfig(cfg))

	log.WithField("environment", cfg.Environment).Infof("mailtrace server starting on :%s", cfg.Port)
	if err := serve(ctx, ":"+cfg.Port, handler); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}

// serve runs an HTTP server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, address string, handler http.Handler) error {
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logging.Component("server").Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
