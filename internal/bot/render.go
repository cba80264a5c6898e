package bot

import (
	"bytes"
	"unicode/utf8"

	"github.com/m3rciful/stickerbot/core/telegram/helpers"
	"github.com/m3rciful/stickerbot/core/telegram/keyboard"
	"github.com/m3rciful/stickerbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

const (
	// maxChoiceButtons keeps large catalogs as a typed list only.
	maxChoiceButtons = 60
	shortChoiceLen   = 3
	shortPerRow      = 5
	namesPerRow      = 2
)

// send delivers a conversation reply: the rendered image with the reply text
// as caption, or the text with a keyboard of the next step's choices.
func (a *App) send(c tele.Context, r flow.Reply) error {
	switch {
	case len(r.Image) > 0:
		return helpers.SendPhoto(c, &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(r.Image)),
			Caption: r.Text,
		})
	case r.ImageURL != "":
		return helpers.SendPhoto(c, &tele.Photo{
			File:    tele.FromURL(r.ImageURL),
			Caption: r.Text,
		})
	case r.Text == "":
		return nil
	}
	return helpers.SendTextMarkup(c, r.Text, replyMarkup(r))
}

// replyMarkup returns the inline keyboard for r. Finished sessions get none;
// open ones always get a cancel button.
func replyMarkup(r flow.Reply) *tele.ReplyMarkup {
	rows := choiceRows(r)
	if rows == nil {
		return nil
	}
	return keyboard.InlineButtonsRows(rows...)
}

func choiceRows(r flow.Reply) [][]keyboard.InlineBtn {
	if r.Done {
		return nil
	}
	cancel := []keyboard.InlineBtn{keyboard.CancelButton(cbCancel)}

	if len(r.Choices) == 0 || len(r.Choices) > maxChoiceButtons {
		return [][]keyboard.InlineBtn{cancel}
	}
	buttons := make([]keyboard.InlineBtn, len(r.Choices))
	short := true
	for i, choice := range r.Choices {
		buttons[i] = keyboard.InlineBtn{Text: choice, Unique: cbPick, Data: choice}
		if utf8.RuneCountInString(choice) > shortChoiceLen {
			short = false
		}
	}
	if !keyboard.FitsCallbackData(buttons) {
		return [][]keyboard.InlineBtn{cancel}
	}

	perRow := namesPerRow
	if short {
		perRow = shortPerRow
	}
	return append(keyboard.ChunkInline(buttons, perRow), cancel)
}
