package state

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

const (
	// DefaultPlatform is used when the platform of a conversation is unknown.
	DefaultPlatform = "default"
	// UnknownSender is used when an update carries no sender.
	UnknownSender = "unknown"
)

// Key identifies a conversation: the platform it happens on and the sender within it.
type Key struct {
	Platform string
	Sender   string
}

// NewKey builds a Key, substituting defaults for empty parts.
func NewKey(platform, sender string) Key {
	if platform == "" {
		platform = DefaultPlatform
	}
	if sender == "" {
		sender = UnknownSender
	}
	return Key{Platform: platform, Sender: sender}
}

// String renders the key as platform:sender.
func (k Key) String() string {
	return k.Platform + ":" + k.Sender
}

// KeyFromContext derives the conversation key of a Telegram update.
func KeyFromContext(c tele.Context, platform string) Key {
	sender := ""
	if c != nil {
		if u := c.Sender(); u != nil {
			sender = strconv.FormatInt(u.ID, 10)
		}
	}
	return NewKey(platform, sender)
}

// Store keeps at most one record of type T per Key.
type Store[T any] interface {
	// Get returns the record for key and whether it exists.
	Get(ctx context.Context, key Key) (T, bool, error)
	// Set creates or overwrites the record for key.
	Set(ctx context.Context, key Key, value T) error
	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
}
