package sticker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/disintegration/imaging"

	"github.com/m3rciful/stickerbot/core/logger"
	"github.com/m3rciful/stickerbot/core/telegram/netutil"
)

const (
	// DefaultTimeout bounds a single compositing request.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxSize is the box rendered stickers are fitted into.
	DefaultMaxSize = 512

	// DefaultMaxBodyBytes caps the size of a rendered image.
	DefaultMaxBodyBytes = 20 << 20
)

// ErrTooLarge is returned when the service answers with more than the
// configured body limit.
var ErrTooLarge = errors.New("sticker: response body too large")

// StatusError reports a non-200 response from the compositing service.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sticker: unexpected status %s", e.Status)
}

// Code classifies the error for handler summaries.
func (e *StatusError) Code() string { return "fetch_status" }

// Options configure a Client. Zero values select defaults.
type Options struct {
	BaseURL   string
	ImageBase string
	Timeout   time.Duration
	// MaxSize fits the image into a MaxSize x MaxSize box; 0 disables fitting.
	MaxSize int
	// MaxBodyBytes caps the response body; larger bodies fail with ErrTooLarge.
	MaxBodyBytes int64
	HTTPClient   *http.Client
}

// Client renders stickers through the compositing service.
type Client struct {
	baseURL   string
	imageBase string
	maxSize   int
	maxBody   int64
	http      *http.Client
}

// NewClient returns a Client configured from opts.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ImageBase == "" {
		opts.ImageBase = DefaultImageBase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = netutil.BuildHTTPClient(netutil.ClientOptions{Timeout: opts.Timeout})
	}
	return &Client{
		baseURL:   opts.BaseURL,
		imageBase: opts.ImageBase,
		maxSize:   opts.MaxSize,
		maxBody:   opts.MaxBodyBytes,
		http:      hc,
	}
}

// URL returns the compositing URL for req.
func (c *Client) URL(req Request) string {
	return BuildURL(c.baseURL, c.imageBase, req)
}

// Fetch performs a single GET for req and returns the image bytes.
// Non-200 responses yield *StatusError. No retries are attempted.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	target := c.URL(req)
	start := time.Now()

	body, err := c.get(ctx, target)
	attrs := []slog.Attr{
		slog.String("pack", req.Pack),
		slog.String("character", req.Character),
		slog.String("style_id", req.StyleID),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.Warn(ctx, logger.CompRender, "render.fetch",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...,
		)
		return nil, err
	}

	out := c.fit(ctx, body)
	logger.Info(ctx, logger.CompRender, "render.fetch",
		append(attrs, slog.String("status", "ok"), slog.Int("bytes", len(out)))...,
	)
	return out, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("sticker: build request: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sticker: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("sticker: read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBody)
	}
	return body, nil
}

// fit scales data down into the configured box and re-encodes it as PNG.
// Images that cannot be decoded, or already fit, are returned unchanged.
func (c *Client) fit(ctx context.Context, data []byte) []byte {
	if c.maxSize <= 0 {
		return data
	}
	out, err := Fit(data, c.maxSize)
	if err != nil {
		logger.Debug(ctx, logger.CompRender, "render.fit", slog.String("status", "skip"), slog.String("err", err.Error()))
		return data
	}
	return out
}

// Fit scales an encoded image down so neither side exceeds maxSize,
// preserving aspect ratio. The result is PNG encoded.
func Fit(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return data, nil
	}
	fitted := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := png.Encode(&buf, fitted); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
