// Command sync runs one Drupal webform sync and prints its report as JSON.
// It exits 2 when another sync holds the lock and 3 on timeout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/contact-hub/internal/bootstrap"
	"github.com/ignite/contact-hub/internal/config"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/syncjob"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Sync.DrupalDSN == "" {
		log.Fatal("DRUPAL_DSN (or sync.drupal_dsn) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer app.Close()

	log.Printf("Syncing %s (%s), timeout %s", cfg.Sync.SiteName, cfg.Sync.SiteURL, cfg.Sync.Timeout())
	res, err := app.Sync.Run(ctx)
	if res != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			log.Printf("encode report: %v", encErr)
		}
	}

	switch {
	case err == nil:
		log.Printf("Sync complete: %d of %d submissions imported", res.SubmissionsImported, res.SubmissionsFound)
	case errors.Is(err, syncjob.ErrSyncInProgress):
		log.Printf("Sync skipped: %v", err)
		app.Close()
		os.Exit(2)
	case errors.Is(err, ingest.ErrTimeout):
		log.Printf("Sync timed out after %s", cfg.Sync.Timeout())
		app.Close()
		os.Exit(3)
	default:
		app.Close()
		log.Fatalf("Sync failed: %v", err)
	}
}
