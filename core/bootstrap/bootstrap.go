package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/stickerbot/core/cache"
	coreconfig "github.com/m3rciful/stickerbot/core/config"
	coredatabase "github.com/m3rciful/stickerbot/core/database"
	"github.com/m3rciful/stickerbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Redis    cache.Config

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(coredatabase.Config) error
	ConnectRedis func(cache.Config) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB and Redis are nil when the corresponding backend is disabled.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases every opened connection.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, then the database with its migrations and
// Redis when they are configured.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	ctx := context.Background()

	if opts.Database.Enabled {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	} else {
		logger.Info(ctx, "db", "db.skip", slog.String("status", "skip"))
	}

	if opts.Redis.Enabled() {
		connect := opts.ConnectRedis
		if connect == nil {
			connect = cache.Connect
		}
		client, err := connect(opts.Redis)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = client
	}

	return res, nil
}
