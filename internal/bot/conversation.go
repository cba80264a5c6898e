package bot

import (
	"github.com/m3rciful/stickerbot/core/telegram/helpers"
	"github.com/m3rciful/stickerbot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

var _ router.Conversation = (*App)(nil)

// InProgress reports whether the sender has a sticker session.
func (a *App) InProgress(c tele.Context) bool {
	return a.tracker.Active(helpers.BuildContext(c), helpers.ConversationKey(c))
}

// Handle applies the message text to the sender's session.
func (a *App) Handle(c tele.Context) error {
	reply, ok := a.tracker.Advance(helpers.BuildContext(c), helpers.ConversationKey(c), c.Text())
	if !ok {
		return nil
	}
	return a.send(c, reply)
}
