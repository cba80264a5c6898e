// Package history records finished sticker flows.
package history

import (
	"context"
	"time"

	"github.com/m3rciful/stickerbot/core/telegram/state"
)

// Entry is one finished flow.
type Entry struct {
	Platform  string    `db:"platform"`
	Sender    string    `db:"sender"`
	Pack      string    `db:"pack"`
	Character string    `db:"character_name"`
	StyleID   string    `db:"style_id"`
	Text      string    `db:"overlay_text"`
	Outcome   string    `db:"outcome"`
	URL       string    `db:"url"`
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}

// Stats summarises the entries of one identity.
type Stats struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
}

// Recorder persists entries. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Stats(ctx context.Context, key state.Key) (Stats, error)
}

// Nop discards entries. It is used when no database is configured.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

// Stats implements Recorder and always reports zero.
func (Nop) Stats(context.Context, state.Key) (Stats, error) { return Stats{}, nil }
