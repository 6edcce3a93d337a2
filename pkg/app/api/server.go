// Package api implements app.Runner for the long-running sync service
// processes: the full lifecycle and the realtime-only mode, both with the
// operational HTTP surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	apphttp "github.com/ustahub/chatsync/pkg/app/http"
	"github.com/ustahub/chatsync/pkg/config"
	"github.com/ustahub/chatsync/pkg/engine"
	"github.com/ustahub/chatsync/pkg/migrations/chatdb"
	"github.com/ustahub/chatsync/pkg/pgutil"
)

const defaultRequestTimeout = 60

// Mode selects which sync paths the server runs.
type Mode int

const (
	// ModeSetup runs the full lifecycle: one full pass, the change feed and
	// the scheduled batch loop.
	ModeSetup Mode = iota
	// ModeRealtime runs only the change feed.
	ModeRealtime
)

// Server holds cfg to init the sync service.
type Server struct {
	cfg  *config.Config
	mode Mode
}

// NewServer initializes a new sync service server.
func NewServer(cfg *config.Config, mode Mode) *Server {
	return &Server{cfg: cfg, mode: mode}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting chatsync",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	if err := s.checkMigrations(ctx, logger); err != nil {
		return err
	}

	eng, err := engine.Bootstrap(cfg, logger, true)
	if err != nil {
		return err
	}

	// The engine and the HTTP server stop together: an engine fatal cancels
	// the server, a signal cancels both.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	engErr := make(chan error, 1)
	go func() {
		switch s.mode {
		case ModeRealtime:
			engErr <- eng.RunRealtime(runCtx)
		default:
			engErr <- eng.Run(runCtx)
		}
		cancel()
	}()

	httpErr := apphttp.ServeAndWait(runCtx, s.setupRouter(eng), logger, &cfg.Server)

	cancel()
	if err := <-engErr; err != nil {
		return err
	}
	return httpErr
}

// checkMigrations warns when the chat database has unapplied migrations. The
// service still starts; the upsert path will surface the missing tables
// immediately and loudly.
func (s *Server) checkMigrations(ctx context.Context, logger *zap.Logger) error {
	db, err := pgutil.ConnectDB(&s.cfg.ChatDatabase)
	if err != nil {
		return fmt.Errorf("connect chat db for migration check: %w", err)
	}
	defer func() { _ = db.Close() }()

	migrator := migrate.NewMigrator(db, chatdb.Migrations)
	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		logger.Warn("Could not determine migration status", zap.Error(err))
		return nil
	}
	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		logger.Warn("Chat database has unapplied migrations; run the migrate binary",
			zap.String("unapplied", unapplied.String()))
	}
	return nil
}

func (s *Server) setupRouter(eng *engine.Engine) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		eval := eng.Health()
		status := http.StatusOK
		if !eval.Healthy {
			status = http.StatusServiceUnavailable
		}
		apphttp.WriteJSON(w, status, eval)
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		apphttp.WriteJSON(w, http.StatusOK, eng.Snapshot())
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
