package bot

import (
	"github.com/m3rciful/stickerbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// UnknownText answers text outside of a conversation.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, msgUnknownText)
	}
}

// UnknownDocument answers file uploads.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, msgUnknownDoc)
	}
}

// UnknownCallback answers buttons from older versions of the keyboard.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, msgExpiredButton)
	}
}

// RateLimited answers updates dropped by the per-user rate limit.
func (a *App) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, msgSlowDown)
	}
}
