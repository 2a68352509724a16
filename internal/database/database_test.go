package database

import (
	"context"
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Rocksteady808/roolify-sub002/internal/config"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationFiles, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	r, identifier, err := src.ReadUp(first)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "init", identifier)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS notification_settings")
	assert.Contains(t, string(body), "idx_settings_form_user_site")

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	down.Close()
}

func TestConnect_UnsupportedType(t *testing.T) {
	_, err := Connect(context.Background(), config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestGormLoggerWritesToZap(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l := newGormLogger(zap.New(core))

	l.Warn(context.Background(), "slow query on %s", "submissions")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gorm", entries[0].LoggerName)
	assert.Contains(t, entries[0].Message, "slow query on submissions")
}
