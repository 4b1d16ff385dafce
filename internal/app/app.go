package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calbot/calbot/internal/config"
	"github.com/calbot/calbot/internal/database"
	"github.com/calbot/calbot/pkg/chat"
	"github.com/calbot/calbot/pkg/telegram"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg  config.Application
	db   *pgxpool.Pool
	deps *Dependencies
}

// NewApplication loads configuration, connects to the database and applies migrations.
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(cfg.Database); err != nil {
		db.Close()
		return nil, err
	}

	return &Application{cfg: cfg, db: db, deps: BuildDependencies(db, cfg)}, nil
}

// NewRouter builds the HTTP handler tree.
func NewRouter(deps *Dependencies) *mux.Router {
	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, deps)
	return r
}

// Run starts the requested front ends and blocks until ctx is cancelled or one of them fails.
func (a *Application) Run(ctx context.Context, serveHTTP, serveBot bool) error {
	g, ctx := errgroup.WithContext(ctx)
	if serveHTTP {
		g.Go(func() error { return a.serveHTTP(ctx) })
	}
	if serveBot {
		g.Go(func() error { return a.serveBot(ctx) })
	}
	return g.Wait()
}

func (a *Application) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Handler:      NewRouter(a.deps),
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSec) * time.Second,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *Application) serveBot(ctx context.Context) error {
	poller, err := telegram.NewPoller(a.cfg.Telegram, a.deps.ChatBot)
	if err != nil {
		return err
	}
	if err := poller.RegisterCommands(chat.Commands); err != nil {
		log.Warnf("Command menu not registered: %v", err)
	}
	poller.Run(ctx)
	return nil
}

func (a *Application) Close() {
	a.db.Close()
}
