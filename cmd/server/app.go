package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/revivephoto/revive-api/internal/billing"
	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/notify"
	"github.com/revivephoto/revive-api/internal/platform/gemini"
	"github.com/revivephoto/revive-api/internal/platform/postgres"
	"github.com/revivephoto/revive-api/internal/service/auth"
	"github.com/revivephoto/revive-api/internal/store"
	"github.com/revivephoto/revive-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore   store.UserStore
	taskStore   store.TaskStore
	ledgerStore store.LedgerStore

	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier

	pricer   *billing.Pricer
	ledger   *billing.Ledger
	notifier notify.Notifier

	taskService *task.Service
	scheduler   *task.Scheduler
	reaper      *task.Reaper
}

// newApplication creates a new application instance with all dependencies
// initialized. Configuration, logger, and database connection must be
// established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.passwordVerifier = auth.NewBcryptVerifier()

	app.userStore = postgres.NewUserStore(db, cfg.Auth.BcryptCost)
	app.taskStore = postgres.NewTaskStore(db)
	app.ledgerStore = postgres.NewLedgerStore(db)

	app.pricer = billing.NewPricer(cfg.Pricing)
	app.ledger = billing.NewLedger(db, app.taskStore, app.ledgerStore, app.userStore)

	app.notifier = notify.New(cfg.Notifier)

	generator, err := gemini.NewGenerator(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image generator: %w", err)
	}
	logger.Info("Image generator initialized", "model", cfg.Provider.ModelName)

	app.taskService = task.NewService(
		cfg.Engine,
		app.taskStore,
		app.ledger,
		app.pricer,
		generator,
		app.notifier,
	)
	app.scheduler = task.NewScheduler(cfg.Engine, app.taskService, app.taskStore)
	app.reaper = task.NewReaper(cfg.Engine, app.taskStore)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the background engine loops and the HTTP server, handling
// lifecycle and cleanup. It blocks until shutdown completes.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
