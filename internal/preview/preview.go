// Package preview renders contact sheets of a character's styles so users can
// pick a style number by sight.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/stickerbot/core/logger"
	"github.com/m3rciful/stickerbot/core/telegram/netutil"
	"github.com/m3rciful/stickerbot/internal/sticker"
)

const (
	defaultThumbSize   = 128
	defaultColumns     = 5
	defaultConcurrency = 4
	defaultTimeout     = 15 * time.Second
	defaultSourceBytes = 10 << 20
)

// ErrNoImages is returned when none of a character's style images could be fetched.
var ErrNoImages = errors.New("preview: no style images available")

// Options configure a Builder. Zero values select defaults.
type Options struct {
	// Dir caches rendered sheets as <Dir>/<pack>/<character>.png.
	Dir         string
	ImageBase   string
	ThumbSize   int
	Columns     int
	Concurrency int
	// MaxSourceBytes caps one style image download.
	MaxSourceBytes int64
	HTTPClient     *http.Client
}

// Builder renders and caches preview sheets.
type Builder struct {
	opts  Options
	http  *http.Client
	group singleflight.Group
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts Options) *Builder {
	if opts.Dir == "" {
		opts.Dir = filepath.Join(os.TempDir(), "stickerbot-previews")
	}
	if opts.ImageBase == "" {
		opts.ImageBase = sticker.DefaultImageBase
	}
	if opts.ThumbSize <= 0 {
		opts.ThumbSize = defaultThumbSize
	}
	if opts.Columns <= 0 {
		opts.Columns = defaultColumns
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = defaultSourceBytes
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = netutil.BuildHTTPClient(netutil.ClientOptions{Timeout: defaultTimeout, RetryAttempts: 1})
	}
	return &Builder{opts: opts, http: hc}
}

// Path returns the cache location of the sheet for pack/character.
func (b *Builder) Path(pack, character string) string {
	return filepath.Join(b.opts.Dir, filepath.Base(pack), filepath.Base(character)+".png")
}

// Sheet returns the path of the preview sheet for pack/character with count
// styles, rendering it on a cache miss. Concurrent calls for the same
// character share one render.
func (b *Builder) Sheet(ctx context.Context, pack, character string, count int) (string, error) {
	path := b.Path(pack, character)
	if _, err := os.Stat(path); err == nil {
		logger.Debug(ctx, logger.CompPreview, "preview.sheet",
			slog.String("cache", "hit"),
			slog.String("pack", pack),
			slog.String("character", character),
		)
		return path, nil
	}

	v, err, _ := b.group.Do(path, func() (any, error) {
		start := time.Now()
		img, err := b.render(ctx, pack, character, count)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("preview: create cache dir: %w", err)
		}
		if err := writeAtomic(path, img); err != nil {
			return "", err
		}
		logger.Info(ctx, logger.CompPreview, "preview.sheet",
			slog.String("status", "ok"),
			slog.String("cache", "miss"),
			slog.String("pack", pack),
			slog.String("character", character),
			slog.Int("styles", count),
			slog.Duration("duration", time.Since(start)),
		)
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Purge removes every cached sheet.
func (b *Builder) Purge() error {
	if err := os.RemoveAll(b.opts.Dir); err != nil {
		return fmt.Errorf("preview: purge: %w", err)
	}
	logger.Info(context.Background(), logger.CompPreview, "preview.purge",
		slog.String("status", "ok"),
		slog.String("cache", "refresh"),
	)
	return nil
}

func (b *Builder) render(ctx context.Context, pack, character string, count int) (image.Image, error) {
	if count <= 0 {
		return nil, ErrNoImages
	}
	thumbs := make([]image.Image, count)
	errs := make([]error, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i := range thumbs {
		i := i
		g.Go(func() error {
			url := sticker.ImagePath(b.opts.ImageBase, pack, character, sticker.FormatStyleID(i+1))
			img, err := b.fetch(gctx, url)
			if err != nil {
				errs[i] = err
				return nil
			}
			thumbs[i] = imaging.Fit(img, b.opts.ThumbSize, b.opts.ThumbSize, imaging.Lanczos)
			return nil
		})
	}
	_ = g.Wait()

	missing := 0
	for i, err := range errs {
		if err != nil {
			missing++
			logger.Debug(ctx, logger.CompPreview, "preview.thumb",
				slog.String("status", "skip"),
				slog.String("style_id", sticker.FormatStyleID(i+1)),
				slog.String("err", err.Error()),
			)
		}
	}
	if missing == count {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrNoImages, pack, character, errors.Join(errs...))
	}
	return Compose(thumbs, b.opts.ThumbSize, b.opts.Columns), nil
}

// writeAtomic encodes img as PNG next to path and renames it into place so
// readers never observe a partial file.
func writeAtomic(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sheet-*")
	if err != nil {
		return fmt.Errorf("preview: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := imaging.Encode(tmp, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("preview: encode sheet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("preview: write sheet: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("preview: store sheet: %w", err)
	}
	return nil
}

func (b *Builder) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	limit := b.opts.MaxSourceBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", url, limit)
	}
	return imaging.Decode(bytes.NewReader(data))
}

// Compose lays thumbs out left to right, top to bottom on a white canvas of
// size-pixel cells. Nil entries leave their cell blank.
func Compose(thumbs []image.Image, size, columns int) *image.NRGBA {
	if columns > len(thumbs) {
		columns = len(thumbs)
	}
	if columns <= 0 {
		columns = 1
	}
	rows := (len(thumbs) + columns - 1) / columns
	sheet := imaging.New(columns*size, max(rows, 1)*size, color.White)
	for i, th := range thumbs {
		if th == nil {
			continue
		}
		cell := image.Pt((i%columns)*size, (i/columns)*size)
		// centre the thumbnail in its cell
		off := image.Pt((size-th.Bounds().Dx())/2, (size-th.Bounds().Dy())/2)
		sheet = imaging.Overlay(sheet, th, cell.Add(off), 1.0)
	}
	return sheet
}
