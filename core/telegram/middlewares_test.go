package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/stickerbot/core/config"
)

func middlewareNames(mws []Middleware) []string {
	names := make([]string, 0, len(mws))
	for _, mw := range mws {
		names = append(names, mw.Name)
	}
	return names
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	assert.Equal(t, []string{"recover", "logger", "metrics"}, middlewareNames(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, middlewareNames(DefaultMiddlewares(cfg, nil)))

	cfg.RateLimit.IntervalMS = 500
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, middlewareNames(DefaultMiddlewares(cfg, nil)))
}

func TestRateLimitAnswersDroppedUpdates(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 60_000
	cfg.RateLimit.ExcludeUpdates = []string{"callback"}

	var limited, handled int
	mw, ok := rateLimit(cfg, func(tele.Context) error {
		limited++
		return nil
	})
	assert.True(t, ok)
	h := mw(func(tele.Context) error {
		handled++
		return nil
	})

	msg := tele.NewContext(nil, tele.Update{Message: &tele.Message{Sender: &tele.User{ID: 3}, Chat: &tele.Chat{ID: 3}}})
	assert.NoError(t, h(msg))
	assert.NoError(t, h(msg))
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, limited)

	cb := tele.NewContext(nil, tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: 3}}})
	assert.NoError(t, h(cb))
	assert.Equal(t, 2, handled)
}
