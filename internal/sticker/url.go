// Package sticker builds compositing-service URLs and fetches rendered stickers.
package sticker

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the text-overlay compositing endpoint.
	DefaultBaseURL = "https://next-sticker.vercel.app/api/overlay-text"
	// DefaultImageBase hosts the character artwork.
	DefaultImageBase = "https://raw.githubusercontent.com/kamicry/koishi-plugin-pjsk-pptr/main/src/assets/img"
)

// Request identifies a single sticker render.
type Request struct {
	Pack      string
	Character string
	// StyleID is the two-digit style identifier, e.g. "03".
	StyleID string
	Text    string
}

// ImagePath returns the source artwork URL for pack/character/style.
func ImagePath(imageBase, pack, character, styleID string) string {
	return strings.TrimRight(imageBase, "/") + "/" + pack + "/" + character + "/" + character + "_" + styleID + ".png"
}

// BuildURL returns the compositing URL for req. The image path is embedded
// verbatim; the text is percent-encoded with spaces as %20 and "/" kept.
func BuildURL(baseURL, imageBase string, req Request) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if imageBase == "" {
		imageBase = DefaultImageBase
	}
	return baseURL + "?path=" + ImagePath(imageBase, req.Pack, req.Character, req.StyleID) + "&key=" + QuoteText(req.Text)
}

// QuoteText percent-encodes s keeping unreserved characters and "/".
func QuoteText(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "%2F", "/")
}

// FormatStyleID zero-pads a 1-based style number to two digits.
func FormatStyleID(n int) string {
	return fmt.Sprintf("%02d", n)
}
