package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stickerbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/sticker", commands.Command{Handler: noop, Description: "Make a sticker"}))

	assert.Error(t, reg.RegisterCommand("/sticker", commands.Command{Handler: noop, Description: "dup"}))
	assert.Error(t, reg.RegisterCommand("sticker", commands.Command{Handler: noop, Description: "no slash"}))
	assert.Error(t, reg.RegisterCommand("/empty", commands.Command{Handler: noop}))
	assert.Error(t, reg.RegisterCommand("/nil", commands.Command{Description: "nil handler"}))
	assert.Len(t, reg.Commands(), 1)
}

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/styles", commands.Command{Handler: noop, Description: "List styles", Aliases: []string{"style"}}))

	key, _, ok := reg.LookupCommand("/styles ichika")
	assert.True(t, ok)
	assert.Equal(t, "/styles", key)

	key, _, ok = reg.LookupCommand("/style")
	assert.True(t, ok)
	assert.Equal(t, "/styles", key)

	_, _, ok = reg.LookupCommand("hello")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("   ")
	assert.False(t, ok)
}

func TestListCommandsVisibleOnly(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/sticker", commands.Command{Handler: noop, Description: "Make a sticker"}))
	require.NoError(t, reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Cancel"}))
	require.NoError(t, reg.RegisterCommand("/purge_previews", commands.Command{Handler: noop, Description: "Purge", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Hidden: true}))

	visible := reg.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "cancel", visible[0].Text)
	assert.Equal(t, "sticker", visible[1].Text)
	assert.Len(t, reg.ListCommands(false), 4)
}

func TestRegisterCallback(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("sticker_pick", noop))
	assert.Error(t, reg.RegisterCallback("sticker_pick", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("sticker_pick")
	assert.True(t, ok)
	assert.Equal(t, []string{"sticker_pick"}, reg.ListCallbacks())
}

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	if len(opts) > 0 {
		f.got, _ = opts[0].([]tele.Command)
	}
	return f.err
}

func TestInitBotCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/sticker", commands.Command{Handler: noop, Description: "Make a sticker"}))

	setter := &fakeSetter{}
	InitBotCommands(setter, reg)
	require.Len(t, setter.got, 1)
	assert.Equal(t, "sticker", setter.got[0].Text)

	InitBotCommands(&fakeSetter{err: errors.New("boom")}, reg)
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "WEBHOOK", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"}})
	hook, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", hook.Listen)

	lp, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, float64(defaultLongPollTimeout), lp.Timeout.Seconds())
}
