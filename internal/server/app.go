// Package server initializes and runs the Hipnode identity server. It wires
// the database, repositories, the identity core and the HTTP surface into an
// explicitly constructed App with an init/teardown lifecycle; there are no
// lazily initialized globals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/auth"
	"github.com/hipnode/hipnode/internal/server/config"
	"github.com/hipnode/hipnode/internal/server/httpapi"
	"github.com/hipnode/hipnode/internal/server/realtime"
	"github.com/hipnode/hipnode/internal/server/repositories/repomanager"
	"github.com/hipnode/hipnode/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := repomanager.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()

	issuer := auth.NewSessionIssuer([]byte(cfg.SecretKey), cfg.Domain, cfg.SessionValidityDuration)
	cookies := auth.NewCookieWriter(cfg.IsProduction())
	verifier := auth.NewVerifier(cfg.Domain, rm.Users(db), logger)

	identity := services.NewIdentityService(db, rm, logger)
	hub := realtime.NewHub(logger)
	authService := services.NewAuthService(db, rm, verifier, issuer, identity, hub, cfg, logger)
	profileService := services.NewProfileService(cfg)

	gate := httpapi.NewGate(issuer, cookies, httpapi.DefaultProtectedRoutes, logger)
	httpServer := httpapi.NewServer(cfg.EndpointAddr, authService, profileService, issuer, cookies, gate, hub,
		prometheus.DefaultRegisterer, logger)

	return &App{config: cfg, logger: logger, db: db, httpServer: httpServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "err", err)
	}
}
