package taskflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/eventbus"
	"github.com/colonyops/taskflow/internal/core/notify"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/internal/data/stores"
	"github.com/colonyops/taskflow/internal/remote"
)

// Local bundles the sqlite-backed repositories.
type Local struct {
	DB         *db.DB
	Tasks      *stores.TaskStore
	Categories *stores.CategoryStore
}

// OpenLocal opens the sqlite store in cfg.DataDir, recovering from a corrupt
// database file once, and seeds the configured categories into an empty
// category table.
func OpenLocal(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Local, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err != nil && stores.IsCorruptionError(err) {
		log.Warn().Err(err).Msg("database corrupt, moving it aside")
		if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
			return nil, fmt.Errorf("recover database: %w", rerr)
		}
		database, err = db.Open(cfg.DataDir, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	local := &Local{
		DB:         database,
		Tasks:      stores.NewTaskStore(database),
		Categories: stores.NewCategoryStore(database),
	}

	seed := make([]task.Category, len(cfg.Categories))
	for i, c := range cfg.Categories {
		seed[i] = task.Category{Name: c.Name, Color: c.Color}
	}
	n, err := local.Categories.Seed(ctx, seed)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("seeded categories")
	}

	return local, nil
}

// Close closes the database.
func (l *Local) Close() error {
	return l.DB.Close()
}

// App is the central entry point for task operations. Commands consume App
// instead of cherry-picking raw dependencies.
type App struct {
	Engine        *Engine
	Tasks         task.Repository
	Categories    task.CategoryRepository
	Bus           *eventbus.EventBus
	Notifications *notify.Collector
	Config        *config.Config

	local  *Local
	cancel context.CancelFunc
}

// NewApp constructs an App from explicit dependencies and starts its bus.
// Notifications raised by the engine are collected until drained.
func NewApp(
	tasks task.Repository,
	categories task.CategoryRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *App {
	bus := eventbus.New(256)
	eventbus.RegisterDebugLogger(bus, log.With().Str("component", "eventbus").Logger())
	eventbus.NewNotificationRouter(bus).Register()

	collector := &notify.Collector{}
	bus.SubscribeNotificationPublished(func(p eventbus.NotificationPublishedPayload) {
		collector.Add(p.Level, p.Message)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)

	return &App{
		Engine:        NewEngine(tasks, categories, bus, log, Options{DefaultCategory: cfg.DefaultCategory}),
		Tasks:         tasks,
		Categories:    categories,
		Bus:           bus,
		Notifications: collector,
		Config:        cfg,
		cancel:        cancel,
	}
}

// Open picks the repository implementation from cfg: a remote service when
// remote.url is set, the local sqlite store otherwise.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.UseRemote() {
		log.Debug().Str("url", cfg.Remote.URL).Msg("using remote service")
		return NewApp(
			remote.NewTaskClient(cfg.Remote.URL, cfg.Remote.Timeout),
			remote.NewCategoryClient(cfg.Remote.URL, cfg.Remote.Timeout),
			cfg,
			log,
		), nil
	}

	local, err := OpenLocal(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app := NewApp(local.Tasks, local.Categories, cfg, log)
	app.local = local
	return app, nil
}

// Settle waits for op and then for the notifications it raised to reach
// the collector.
func (a *App) Settle(ctx context.Context, op *Op) (task.Task, error) {
	t, err := op.Wait(ctx)

	syncCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = a.Bus.Sync(syncCtx)

	return t, err
}

// Local returns the sqlite repositories, or nil when the app talks to a
// remote service.
func (a *App) Local() *Local {
	return a.local
}

// Close tears down the engine, the bus and any local database.
func (a *App) Close() error {
	a.Engine.Close()
	a.cancel()
	if a.local != nil {
		return a.local.Close()
	}
	return nil
}
