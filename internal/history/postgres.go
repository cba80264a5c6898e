package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/stickerbot/core/logger"
	"github.com/m3rciful/stickerbot/core/telegram/state"
)

const (
	insertEntry = `INSERT INTO sticker_generations
	(platform, sender, pack, character_name, style_id, overlay_text, outcome, url, error, created_at)
	VALUES (:platform, :sender, :pack, :character_name, :style_id, :overlay_text, :outcome, :url, :error, :created_at)`

	selectStats = `SELECT COUNT(*) AS total,
	COUNT(*) FILTER (WHERE outcome = 'completed') AS completed
	FROM sticker_generations WHERE platform = $1 AND sender = $2`

	selectRecent = `SELECT platform, sender, pack, character_name, style_id, overlay_text, outcome, url, error, created_at
	FROM sticker_generations WHERE platform = $1 AND sender = $2
	ORDER BY created_at DESC LIMIT $3`
)

// Postgres stores entries in the sticker_generations table.
type Postgres struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Record inserts e. A zero CreatedAt is set to the current time.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.now().UTC()
	}
	start := time.Now()
	if _, err := p.db.NamedExecContext(ctx, insertEntry, e); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	logger.Debug(ctx, logger.CompHistory, "history.record",
		slog.String("status", "ok"),
		slog.String("outcome", e.Outcome),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Stats counts entries for key.
func (p *Postgres) Stats(ctx context.Context, key state.Key) (Stats, error) {
	var s Stats
	if err := p.db.GetContext(ctx, &s, selectStats, key.Platform, key.Sender); err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	return s, nil
}

// Recent returns up to limit latest entries for key, newest first.
func (p *Postgres) Recent(ctx context.Context, key state.Key, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Entry
	if err := p.db.SelectContext(ctx, &out, selectRecent, key.Platform, key.Sender, limit); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return out, nil
}
