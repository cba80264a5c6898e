package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/stickerbot/core/config"
	"github.com/m3rciful/stickerbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the chain used by the bot: panic recovery, the
// per-user rate limit when rate_limit.interval_ms is set, then logging and
// message counters. onLimited answers updates dropped by the rate limit.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if limit, ok := rateLimit(cfg, onLimited); ok {
		mws = append(mws, Middleware{Name: "rate_limit", Use: limit})
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) (tele.MiddlewareFunc, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil, false
	}
	// exclude_updates is lowercased by config normalization.
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   exclude,
		OnLimited: onLimited,
	}), true
}
