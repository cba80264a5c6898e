// Package bot adapts the sticker conversation to Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/stickerbot/core/bootstrap"
	"github.com/m3rciful/stickerbot/core/logger"
	tg "github.com/m3rciful/stickerbot/core/telegram"
	"github.com/m3rciful/stickerbot/core/telegram/netutil"
	"github.com/m3rciful/stickerbot/core/telegram/router"
	tgsender "github.com/m3rciful/stickerbot/core/telegram/sender"
	"github.com/m3rciful/stickerbot/core/telegram/state"
	"github.com/m3rciful/stickerbot/internal/catalog"
	"github.com/m3rciful/stickerbot/internal/config"
	"github.com/m3rciful/stickerbot/internal/flow"
	"github.com/m3rciful/stickerbot/internal/history"
	"github.com/m3rciful/stickerbot/internal/preview"
	"github.com/m3rciful/stickerbot/internal/sticker"
)

// App owns the sticker services and exposes them as a Telegram bot.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	catalog  *catalog.Catalog
	tracker  *flow.Tracker
	sessions state.Store[flow.Session]
	recorder history.Recorder
	// previews is nil when preview sheets are disabled.
	previews *preview.Builder
	help     string
}

// Bootstrap initializes logging and storage for cfg and builds the App.
func Bootstrap(cfg *config.Config) (*App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Redis:    cfg.Redis,
	})
	if err != nil {
		return nil, err
	}
	app, err := New(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return app, nil
}

// New wires the services on top of already initialized infrastructure.
// infra may be nil when neither a database nor Redis is used.
func New(cfg *config.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config")
	}
	if infra == nil {
		infra = &bootstrap.Result{}
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	store, err := sessionStore(cfg, infra)
	if err != nil {
		return nil, err
	}

	var recorder history.Recorder = history.Nop{}
	if infra.DB != nil {
		recorder = history.NewPostgres(infra.DB)
	}

	httpClient := netutil.BuildHTTPClient(netutil.ClientOptions{
		Timeout: cfg.Sticker.Timeout(),
	})
	renderer := sticker.NewClient(sticker.Options{
		BaseURL:    cfg.Sticker.BaseURL,
		ImageBase:  cfg.Sticker.ImageBase,
		Timeout:    cfg.Sticker.Timeout(),
		MaxSize:    cfg.Sticker.MaxSize,
		HTTPClient: httpClient,
	})

	tracker, err := flow.NewTracker(flow.Options{
		Catalog:   cat,
		Store:     store,
		Renderer:  renderer,
		Recorder:  recorder,
		StartStep: flow.Step(cfg.Flow.StartStep),
		Delivery:  flow.Delivery(cfg.Sticker.Delivery),
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		infra:    infra,
		catalog:  cat,
		tracker:  tracker,
		sessions: store,
		recorder: recorder,
	}
	if cfg.Preview.Enabled {
		app.previews = preview.NewBuilder(preview.Options{
			Dir:       cfg.Preview.CacheDir,
			ImageBase: cfg.Sticker.ImageBase,
			ThumbSize: cfg.Preview.ThumbSize,
			Columns:   cfg.Preview.Columns,
		})
	}

	logger.Info(context.Background(), "app", "init",
		slog.String("status", "ok"),
		slog.String("sessions", cfg.Sessions.Backend),
		slog.Bool("history", infra.DB != nil),
		slog.Bool("previews", app.previews != nil),
		slog.String("start_step", cfg.Flow.StartStep),
		slog.String("delivery", cfg.Sticker.Delivery),
	)
	return app, nil
}

func sessionStore(cfg *config.Config, infra *bootstrap.Result) (state.Store[flow.Session], error) {
	if cfg.Sessions.Backend != config.SessionsRedis {
		return state.NewMemoryStore[flow.Session](), nil
	}
	if infra.Redis == nil {
		return nil, fmt.Errorf("bot: sessions.backend is %q but Redis is not connected", cfg.Sessions.Backend)
	}
	return state.NewRedisStore[flow.Session](infra.Redis, cfg.Redis.Prefix, cfg.Sessions.TTL), nil
}

// TelegramRunOptions builds the registry, middleware chain and routes.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.adminRejected,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{
		UnknownText:     a.UnknownText(),
		UnknownDocument: a.UnknownDocument(),
	})...)

	return tg.RunOptions{
		Config:   core,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			MaxRetries:   2,
			RetryBackoff: time.Second,
		},
		Middlewares: tg.DefaultMiddlewares(core, a.RateLimited()),
		Routes:      routes,
	}, nil
}

type clearableStore interface {
	Len() int
	Clear()
}

// Close drops in-process sessions and releases database and Redis connections.
func (a *App) Close() error {
	if s, ok := a.sessions.(clearableStore); ok {
		logger.Info(context.Background(), "app", "sessions.clear",
			slog.String("status", "ok"),
			slog.Int("count", s.Len()),
		)
		s.Clear()
	}
	return a.infra.Close()
}
