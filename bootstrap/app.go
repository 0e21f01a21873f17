package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aegis/api"
	"aegis/audit"
	"aegis/config"
	"aegis/ml"
	"aegis/notify"
	"aegis/service"
	"aegis/storage"

	"go.uber.org/zap"
)

// App holds the wired application components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SQLite  *storage.SQLite
	MongoDB *storage.MongoDB
	Archive *storage.IncidentArchive

	Auditor *audit.Logger

	AuthzService        *service.AuthzService
	IncidentService     *service.IncidentService
	NotificationService *service.NotificationService
	PlaybookService     *service.PlaybookService

	UserStorage *storage.SQLiteUserStorage

	APIServer *api.API

	shutdownCh chan struct{}
}

// NewApp loads configuration and wires every component. Nothing is
// started yet; call Start.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{shutdownCh: make(chan struct{})}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	logger, sugar, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("Aegis starting...")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	sqlite, err := storage.NewSQLite(cfg.SQLite.Path, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.SQLite = sqlite

	runner := storage.NewMigrationRunner(sqlite)
	storage.RegisterMigrations(runner)
	if err := runner.Run(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	app.Auditor = audit.NewLogger(sugar, cfg.Audit.QueueSize)

	permStorage := storage.NewSQLitePermissionStorage(sqlite, sugar)
	roleStorage := storage.NewSQLiteRoleStorage(sqlite, sugar)
	userStorage := storage.NewSQLiteUserStorage(sqlite, sugar)
	incidentStorage := storage.NewSQLiteIncidentStorage(sqlite, sugar)
	notificationStorage := storage.NewSQLiteNotificationStorage(sqlite, sugar)
	playbookStorage := storage.NewSQLitePlaybookStorage(sqlite, sugar)
	app.UserStorage = userStorage

	if err := SeedRBAC(ctx, permStorage, roleStorage, sugar); err != nil {
		return nil, fmt.Errorf("failed to seed authorization data: %w", err)
	}
	firstRun, err := SeedAdminUser(ctx, userStorage, roleStorage, cfg.Auth.BcryptCost, sugar)
	if err != nil {
		return nil, fmt.Errorf("first-run setup failed: %w", err)
	}
	if firstRun.AdminCreated && firstRun.AdminPassword != "" {
		// Printed once, never logged.
		fmt.Fprintf(os.Stderr, "\nInitial admin account created.\n  username: admin\n  password: %s\nStore this password now; it will not be shown again.\n\n", firstRun.AdminPassword)
	}

	var archiver storage.IncidentArchiver
	if cfg.MongoDB.Enabled {
		mongoDB, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		app.MongoDB = mongoDB
		app.Archive = storage.NewIncidentArchive(
			mongoDB,
			cfg.MongoDB.ArchiveBuffer,
			time.Duration(cfg.MongoDB.ArchiveTimeout)*time.Second,
			sugar,
		)
		archiver = app.Archive
	}

	app.AuthzService = service.NewAuthzService(permStorage, roleStorage, userStorage, app.Auditor, sugar)
	app.IncidentService = service.NewIncidentService(incidentStorage, archiver, sugar)
	app.NotificationService = service.NewNotificationService(notificationStorage, notify.NewAuditSink(app.Auditor, sugar), sugar)
	app.PlaybookService = service.NewPlaybookService(playbookStorage, sugar)

	recommender, err := ml.NewHeuristicScorer(&ml.ScorerConfig{
		RecencyHalfLife: time.Duration(cfg.Recommender.RecencyHalfLifeHours) * time.Hour,
		CacheSize:       cfg.Recommender.CacheSize,
		Logger:          sugar,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recommender: %w", err)
	}

	app.APIServer = api.NewAPI(
		app.AuthzService,
		userStorage,
		app.IncidentService,
		app.NotificationService,
		app.PlaybookService,
		recommender,
		cfg,
		sugar,
	)

	return app, nil
}

// Start launches the background workers and the HTTP server. Blocks
// until the server stops.
func (a *App) Start() error {
	if a.Archive != nil {
		a.Archive.Start()
	}
	if err := a.APIServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	a.Sugar.Infof("Received signal %s, shutting down", sig)
}

// Shutdown stops components in reverse dependency order.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.APIServer != nil {
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorf("API shutdown error: %v", err)
		}
	}
	if a.Archive != nil {
		a.Archive.Stop()
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			a.Sugar.Errorf("MongoDB close error: %v", err)
		}
	}
	if a.Auditor != nil {
		a.Auditor.Close()
	}
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Sugar.Errorf("Database close error: %v", err)
		}
	}
	_ = a.Logger.Sync()
	a.Sugar.Info("Shutdown complete")
}
