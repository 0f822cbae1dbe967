package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-hub/internal/config"
	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/syncjob"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Ingest:   config.IngestConfig{Workers: 2},
		Reports:  config.ReportsConfig{Type: "local", LocalPath: t.TempDir()},
		Log:      config.LogConfig{Level: "error"},
	}
}

func TestNewMemoryApp(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.Nil(t, app.Drupal)

	out, err := app.Orchestrator.Engine().UpsertPerson(ctx, ingest.Fields{"email": "a@b.com"}, domain.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, out.Status)

	_, total, err := app.Contacts.ListPersons(ctx, ingest.PersonFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = app.Sync.Run(ctx)
	assert.ErrorIs(t, err, syncjob.ErrNoSource)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRequiresDatabaseURL(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Database.Driver = "postgres"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}
