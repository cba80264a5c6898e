package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/stickerbot/core/telegram/state"
)

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	require.NoError(t, r.Record(context.Background(), Entry{Outcome: "completed"}))
	s, err := r.Stats(context.Background(), state.NewKey("telegram", "1"))
	require.NoError(t, err)
	assert.Zero(t, s.Total)
}

// TestPostgresRecorder runs against a live database when STICKERBOT_TEST_DSN is set.
// The sticker_generations table must already exist.
func TestPostgresRecorder(t *testing.T) {
	dsn := os.Getenv("STICKERBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("STICKERBOT_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	key := state.NewKey("test", time.Now().Format("150405.000000"))
	rec := NewPostgres(db)
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, Entry{Platform: key.Platform, Sender: key.Sender, Pack: "p", Character: "c", StyleID: "01", Text: "hi", Outcome: "completed"}))
	require.NoError(t, rec.Record(ctx, Entry{Platform: key.Platform, Sender: key.Sender, Outcome: "fetch_failed", Error: "status 502"}))

	s, err := rec.Stats(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Completed)

	recent, err := rec.Recent(ctx, key, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	_, err = db.ExecContext(ctx, `DELETE FROM sticker_generations WHERE platform = $1 AND sender = $2`, key.Platform, key.Sender)
	require.NoError(t, err)
}
