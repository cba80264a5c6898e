package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "fetch failed" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
	assert.Equal(t, "sticker", normalizeHandlerName("/sticker"))
	assert.Equal(t, "sticker_pick", normalizeHandlerName("Sticker Pick"))
}

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "FETCH_FAILED", deriveErrorCode(codedErr{}))
	assert.Equal(t, "PLAINERR", deriveErrorCode(&plainErr{}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
}
