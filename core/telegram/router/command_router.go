package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/stickerbot/core/logger"
	tg "github.com/m3rciful/stickerbot/core/telegram"
	"github.com/m3rciful/stickerbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Each handler and every alias is bound as its own endpoint.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for cmd, def := range cmds {
		name := normalizeHandlerName(cmd)
		inner := def.Handler
		h := func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), "", "", func() error {
				return inner(c)
			})
		}
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			endpoint := alias
			if endpoint == "" {
				continue
			}
			if endpoint[0] != '/' {
				endpoint = "/" + endpoint
			}
			routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
		}
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
