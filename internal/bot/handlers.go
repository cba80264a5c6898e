package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/stickerbot/core/logger"
	tg "github.com/m3rciful/stickerbot/core/telegram"
	"github.com/m3rciful/stickerbot/core/telegram/callbacks"
	"github.com/m3rciful/stickerbot/core/telegram/commands"
	"github.com/m3rciful/stickerbot/core/telegram/helpers"
	"github.com/m3rciful/stickerbot/core/telegram/state"
	"github.com/m3rciful/stickerbot/internal/catalog"
	"github.com/m3rciful/stickerbot/internal/history"
	"github.com/m3rciful/stickerbot/internal/preview"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques.
const (
	cbPick   = "sticker_pick"
	cbCancel = "sticker_cancel"
)

const (
	msgStart = "Hi! I make stickers with your text.\nSend /sticker to begin or /help to see all commands."

	msgNoSession      = "There is no sticker session in progress. Send /sticker to start one."
	msgUnknownText    = "I did not understand that. Send /sticker to make a sticker."
	msgUnknownDoc     = "Files are not supported. Send /sticker to make a sticker."
	msgExpiredButton  = "This button has expired. Send /sticker to start again."
	msgAdminOnly      = "This command is available to the bot administrator only."
	msgStylesUsage    = "Usage: /styles <character>"
	msgPreviewOff     = "%s has %d styles. Previews are disabled."
	msgPreviewFailed  = "Could not build the style preview, please try again later."
	msgStatsFailed    = "Could not load your statistics, please try again later."
	msgPreviewsPurged = "Preview cache cleared."
	msgSlowDown       = "Slow down a little, then try again."
	recentLimit       = 5
)

// recentLister is implemented by recorders that can list past generations.
type recentLister interface {
	Recent(ctx context.Context, key state.Key, limit int) ([]history.Entry, error)
}

func (a *App) register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     a.handleStart,
			Description: "About this bot",
		},
		"/help": {
			Handler:     a.handleHelp,
			Description: "List commands",
		},
		"/sticker": {
			Handler:     a.handleSticker,
			Description: "Make a new sticker",
		},
		"/cancel": {
			Handler:     a.handleCancel,
			Description: "Cancel the current sticker",
		},
		"/packs": {
			Handler:     a.handlePacks,
			Description: "List packs and characters",
		},
		"/styles": {
			Handler:     a.handleStyles,
			Description: "Preview a character's styles",
		},
		"/stats": {
			Handler:     a.handleStats,
			Description: "Show your sticker count",
		},
		"/purge_previews": {
			Handler:     a.handlePurgePreviews,
			Description: "Clear the preview cache",
			AdminOnly:   true,
			Hidden:      true,
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}
	if err := reg.RegisterCallback(cbPick, a.handlePick); err != nil {
		return err
	}
	if err := reg.RegisterCallback(cbCancel, a.handleCancel); err != nil {
		return err
	}
	a.help = helpText(reg.ListCommands(true))
	return nil
}

func (a *App) handleStart(c tele.Context) error {
	return helpers.SendText(c, msgStart)
}

func (a *App) handleHelp(c tele.Context) error {
	return helpers.SendText(c, a.help)
}

func helpText(cmds []tele.Command) string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, cmd := range cmds {
		fmt.Fprintf(&b, "\n/%s - %s", cmd.Text, cmd.Description)
	}
	fmt.Fprintf(&b, "\n\nType %q at any step to stop.", "quit")
	return b.String()
}

func (a *App) handleSticker(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	return a.send(c, a.tracker.Start(ctx, helpers.ConversationKey(c)))
}

func (a *App) handleCancel(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	reply, ok := a.tracker.Cancel(ctx, helpers.ConversationKey(c))
	if !ok {
		return helpers.SendText(c, msgNoSession)
	}
	return a.send(c, reply)
}

// handlePick feeds an inline keyboard choice into the conversation as if typed.
func (a *App) handlePick(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	reply, ok := a.tracker.Advance(ctx, helpers.ConversationKey(c), callbacks.CallbackPayload(c))
	if !ok {
		return helpers.SendText(c, msgExpiredButton)
	}
	return a.send(c, reply)
}

func (a *App) handlePacks(c tele.Context) error {
	return helpers.SendText(c, packsText(a.catalog))
}

func packsText(cat *catalog.Catalog) string {
	packs := cat.PackNames()
	if len(packs) == 0 {
		return "No sticker packs are available."
	}
	var b strings.Builder
	b.WriteString("Sticker packs:")
	for _, pack := range packs {
		chars, _ := cat.Characters(pack)
		fmt.Fprintf(&b, "\n\n%s\n%s", pack, strings.Join(chars, ", "))
	}
	return b.String()
}

func (a *App) handleStyles(c tele.Context) error {
	_, name, _ := strings.Cut(strings.TrimSpace(c.Text()), " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return helpers.SendText(c, msgStylesUsage)
	}
	pack, character, err := a.catalog.FindCharacter(name)
	if errors.Is(err, catalog.ErrNotFound) {
		return helpers.SendText(c, fmt.Sprintf("Character %q not found.", name))
	}
	if err != nil {
		return err
	}
	count := a.catalog.StyleCount(pack, character)
	if a.previews == nil {
		return helpers.SendText(c, fmt.Sprintf(msgPreviewOff, character, count))
	}

	ctx := helpers.BuildContext(c)
	path, err := a.previews.Sheet(ctx, pack, character, count)
	if err != nil {
		logger.Warn(ctx, logger.CompPreview, "preview.sheet",
			slog.String("status", "fail"),
			slog.String("character", character),
			slog.String("err", err.Error()),
		)
		if errors.Is(err, preview.ErrNoImages) {
			return helpers.SendText(c, fmt.Sprintf("No style images were found for %s.", character))
		}
		return helpers.SendText(c, msgPreviewFailed)
	}
	return helpers.SendPhoto(c, &tele.Photo{
		File:    tele.FromDisk(path),
		Caption: fmt.Sprintf("%s (%s): styles 1-%d, left to right.", character, pack, count),
	})
}

func (a *App) handleStats(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	key := helpers.ConversationKey(c)
	stats, err := a.recorder.Stats(ctx, key)
	if err != nil {
		logger.Warn(ctx, logger.CompHistory, "history.stats",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return helpers.SendText(c, msgStatsFailed)
	}

	var recent []history.Entry
	if lister, ok := a.recorder.(recentLister); ok {
		recent, err = lister.Recent(ctx, key, recentLimit)
		if err != nil {
			logger.Warn(ctx, logger.CompHistory, "history.recent",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	return helpers.SendText(c, statsText(stats, recent))
}

func statsText(stats history.Stats, recent []history.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stickers made: %d (attempts: %d)", stats.Completed, stats.Total)
	if len(recent) > 0 {
		b.WriteString("\n\nRecent:")
		for _, e := range recent {
			fmt.Fprintf(&b, "\n%s %s/%s #%s %q: %s",
				e.CreatedAt.Format("2006-01-02 15:04"), e.Pack, e.Character, e.StyleID, e.Text, e.Outcome)
		}
	}
	return b.String()
}

func (a *App) handlePurgePreviews(c tele.Context) error {
	if a.previews == nil {
		return helpers.SendText(c, "Previews are disabled.")
	}
	if err := a.previews.Purge(); err != nil {
		return fmt.Errorf("purge previews: %w", err)
	}
	logger.Info(helpers.BuildContext(c), logger.CompPreview, "preview.purge", slog.String("status", "ok"))
	return helpers.SendText(c, msgPreviewsPurged)
}

func (a *App) adminRejected(c tele.Context) error {
	return helpers.SendText(c, msgAdminOnly)
}
