package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/stickerbot/core/cache"
	coreconfig "github.com/m3rciful/stickerbot/core/config"
	coredatabase "github.com/m3rciful/stickerbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}

func TestRunSkipsDisabledBackends(t *testing.T) {
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("database must not be contacted when disabled")
			return nil, nil
		},
		ConnectRedis: func(cache.Config) (*redis.Client, error) {
			t.Fatal("redis must not be contacted without URL")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.Nil(t, res.Redis)
	assert.NoError(t, res.Close())
}

func TestRunPropagatesFailures(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no sink") },
	})
	assert.ErrorContains(t, err, "logger init failed")

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Enabled: true},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
	})
	assert.ErrorContains(t, err, "database initialization failed")

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Redis:      cache.Config{URL: "redis://localhost:6379/0"},
		LoggerInit: noLogger,
		ConnectRedis: func(cache.Config) (*redis.Client, error) {
			return nil, errors.New("refused")
		},
	})
	assert.ErrorContains(t, err, "redis initialization failed")
}
