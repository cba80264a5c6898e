package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "session:telegram:42", Key("", "session", "telegram", "42"))
	assert.Equal(t, "stickerbot:session:telegram:42", Key("stickerbot", "session", "telegram", "42"))
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{URL: "  "}.Enabled())
	assert.True(t, Config{URL: "redis://localhost:6379/0"}.Enabled())
}
