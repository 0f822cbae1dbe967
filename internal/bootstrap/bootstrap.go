// Package bootstrap wires configuration into the running services shared by
// the server and sync binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/contact-hub/internal/config"
	"github.com/ignite/contact-hub/internal/pkg/distlock"
	"github.com/ignite/contact-hub/internal/pkg/logger"
	"github.com/ignite/contact-hub/internal/repository/memory"
	"github.com/ignite/contact-hub/internal/repository/postgres"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/source/drupal"
	"github.com/ignite/contact-hub/internal/storage"
	"github.com/ignite/contact-hub/internal/syncjob"
)

// Contacts is a contact store with both write and read sides.
type Contacts interface {
	ingest.Repository
	ingest.Catalog
}

// App holds the wired services. Optional parts (DB, Redis, Drupal, Sync)
// are nil when not configured.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	DB           *sql.DB
	Redis        *redis.Client
	Contacts     Contacts
	Registry     *prometheus.Registry
	Orchestrator *ingest.Orchestrator
	Reports      *storage.Storage
	Drupal       *drupal.Client
	Sync         *syncjob.Runner
}

// New connects every configured dependency. Redis and Drupal failures are
// logged and leave those parts disabled; a database or report archive
// failure is fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	level := logger.ParseLevel(cfg.Log.Level)
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Log.Redact())
	log := logger.New(os.Stderr, level, cfg.Log.Redact())
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.openContacts(ctx); err != nil {
		return nil, err
	}
	a.openRedis(ctx)

	reports, err := storage.New(ctx, cfg.Reports)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init report archive: %w", err)
	}
	a.Reports = reports

	engine := ingest.NewEngine(a.Contacts, ingest.Hooks{
		ingest.NewLogHook(log.With("component", "ingest")),
		ingest.NewMetricsHook(a.Registry),
	})
	a.Orchestrator = ingest.NewOrchestrator(engine, cfg.Ingest.Workers, log)

	var src ingest.Source
	if cfg.Sync.DrupalDSN != "" {
		client, err := drupal.Open(cfg.Sync.DrupalDSN)
		if err != nil {
			log.Warn("drupal source disabled", "error", err)
		} else {
			a.Drupal = client
			src = client
		}
	}
	a.Sync = syncjob.NewRunner(a.Orchestrator, src, syncjob.Options{
		Site:    ingest.SiteRef{Name: cfg.Sync.SiteName, URL: cfg.Sync.SiteURL},
		Timeout: cfg.Sync.Timeout(),
		NewLock: func() distlock.DistLock {
			return distlock.NewLock(a.Redis, a.DB, syncjob.LockKey, cfg.Sync.LockTTL())
		},
		Archive: reports,
		Log:     log,
	})
	return a, nil
}

func (a *App) openContacts(ctx context.Context) error {
	dbCfg := a.Config.Database
	if dbCfg.Driver == "memory" {
		a.Log.Warn("using in-memory contact store, data is lost on exit")
		a.Contacts = memory.New()
		return nil
	}
	if dbCfg.URL == "" {
		return fmt.Errorf("database url is required for driver %q", dbCfg.Driver)
	}

	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	a.DB = db
	a.Contacts = postgres.NewContactRepo(db)
	return nil
}

func (a *App) openRedis(ctx context.Context) {
	url := a.Config.Redis.URL
	if url == "" {
		a.Log.Info("redis not configured, sync lock falls back to database or process lock")
		return
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.Log.Warn("redis unavailable, sync lock falls back", "error", err)
		client.Close()
		return
	}
	a.Redis = client
}

// Close releases every open connection.
func (a *App) Close() {
	if a.Drupal != nil {
		a.Drupal.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
