package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"unique set", &tele.Callback{Unique: "sticker_pick", Data: "ichika"}, "sticker_pick", "ichika"},
		{"generic data", &tele.Callback{Data: "\fsticker_pick|3"}, "sticker_pick", "3"},
		{"no payload", &tele.Callback{Data: "\fsticker_cancel"}, "sticker_cancel", ""},
		{"payload with separator", &tele.Callback{Data: "\fsticker_pick|a|b"}, "sticker_pick", "a|b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	key, payload := ParseCallbackData(&tele.Callback{Data: Encode("sticker_pick", "Leo/need")})
	assert.Equal(t, "sticker_pick", key)
	assert.Equal(t, "Leo/need", payload)

	key, payload = ParseCallbackData(&tele.Callback{Data: Encode("sticker_cancel", "")})
	assert.Equal(t, "sticker_cancel", key)
	assert.Empty(t, payload)
}
