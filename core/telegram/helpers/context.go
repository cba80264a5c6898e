package helpers

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/stickerbot/core/logger"
	"github.com/m3rciful/stickerbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

var platform atomic.Value

// SetPlatform sets the identity namespace attached to every update context.
func SetPlatform(name string) {
	platform.Store(name)
}

// Platform returns the configured identity namespace or state.DefaultPlatform.
func Platform() string {
	if p, ok := platform.Load().(string); ok && p != "" {
		return p
	}
	return state.DefaultPlatform
}

// ConversationKey returns the session key of the update's sender.
func ConversationKey(c tele.Context) state.Key {
	return state.KeyFromContext(c, Platform())
}

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom telegram context if previously stored by middleware.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok
}

// BuildContext constructs a context.Context from tele.Context,
// enriching it with RID, update id and conversation identity for consistent service logging.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}
	sender := ""
	if userID != 0 {
		sender = strconv.FormatInt(userID, 10)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, Platform(), sender, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
