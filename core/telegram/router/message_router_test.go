package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/stickerbot/core/telegram"
	"github.com/m3rciful/stickerbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type fakeConversation struct {
	active  bool
	handled []string
}

func (f *fakeConversation) InProgress(tele.Context) bool { return f.active }

func (f *fakeConversation) Handle(c tele.Context) error {
	f.handled = append(f.handled, c.Text())
	return nil
}

func textUpdate(text string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: 10,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: 5},
			Chat:   &tele.Chat{ID: 5},
		},
	})
}

func TestTextRoutesPriority(t *testing.T) {
	cases := []struct {
		name     string
		active   bool
		fallback bool
		text     string
		want     string
	}{
		{name: "overlay text matching a command", active: true, text: "help me", want: "conversation"},
		{name: "slash text while active", active: true, text: "/help", want: "conversation"},
		{name: "typed command without session", text: "help", want: "/help"},
		{name: "slash command without session", text: "/help now", want: "/help"},
		{name: "admin command is not typed", text: "/purge", want: "unknown"},
		{name: "unknown text", text: "hello", want: "unknown"},
		{name: "registry fallback wins over unknown", fallback: true, text: "hello", want: "fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			record := func(name string) tele.HandlerFunc {
				return func(tele.Context) error {
					got = append(got, name)
					return nil
				}
			}

			reg := tg.NewRegistry()
			require.NoError(t, reg.RegisterCommand("/help", commands.Command{
				Handler:     record("/help"),
				Description: "help",
			}))
			require.NoError(t, reg.RegisterCommand("/purge", commands.Command{
				Handler:     record("/purge"),
				Description: "purge",
				AdminOnly:   true,
			}))
			if tc.fallback {
				reg.SetTextFallback(record("fallback"))
			}

			conv := &fakeConversation{active: tc.active}
			routes := TextRoutes(conv, reg, TextOptions{UnknownText: record("unknown")})
			require.Len(t, routes, 2)
			assert.Equal(t, tele.OnText, routes[0].Endpoint)

			require.NoError(t, routes[0].Handler(textUpdate(tc.text)))

			if tc.want == "conversation" {
				assert.Equal(t, []string{tc.text}, conv.handled)
				assert.Empty(t, got)
				return
			}
			assert.Empty(t, conv.handled)
			assert.Equal(t, []string{tc.want}, got)
		})
	}
}

func TestTextRoutesDocuments(t *testing.T) {
	var called bool
	routes := TextRoutes(nil, nil, TextOptions{
		UnknownDocument: func(tele.Context) error {
			called = true
			return nil
		},
	})
	require.Len(t, routes, 2)
	assert.Equal(t, tele.OnDocument, routes[1].Endpoint)
	require.NoError(t, routes[1].Handler(textUpdate("")))
	assert.True(t, called)
}

func TestTextRoutesWithoutHandlers(t *testing.T) {
	routes := TextRoutes(nil, nil, TextOptions{})
	assert.NoError(t, routes[0].Handler(textUpdate("anything")))
	assert.NoError(t, routes[1].Handler(textUpdate("")))
}
