package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// MaxCallbackData is the Telegram limit for callback_data in bytes.
const MaxCallbackData = 64

const defaultCancelButtonText = "❌ Cancel"

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// InlineButtons builds an inline keyboard where each provided button is placed on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// ChunkInline splits a flat list of buttons into rows with up to n buttons per row.
func ChunkInline(buttons []InlineBtn, n int) [][]InlineBtn {
	if n <= 1 {
		n = 1
	}
	rows := make([][]InlineBtn, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, it behaves like InlineButtons (one per row).
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(ChunkInline(buttons, n)...)
}

// CancelButton returns a cancel button bound to action.
// Optional arguments override payload (first value) and label (second value).
func CancelButton(action string, options ...string) InlineBtn {
	btn := InlineBtn{Text: defaultCancelButtonText, Unique: action}
	if len(options) > 0 {
		btn.Data = options[0]
	}
	if len(options) > 1 && options[1] != "" {
		btn.Text = options[1]
	}
	return btn
}

// FitsCallbackData reports whether every button's encoded callback data
// stays within the Telegram limit.
func FitsCallbackData(buttons []InlineBtn) bool {
	for _, b := range buttons {
		// "\f" + unique + "|" + data
		if 2+len(b.Unique)+len(b.Data) > MaxCallbackData {
			return false
		}
	}
	return true
}
