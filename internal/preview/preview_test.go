package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newImageServer(t *testing.T, missing map[string]bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	body := solidPNG(t, 64, 32)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		for suffix := range missing {
			if strings.HasSuffix(r.URL.Path, suffix) {
				http.NotFound(w, r)
				return
			}
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestComposeLayout(t *testing.T) {
	thumb := imaging.New(10, 10, color.Black)
	sheet := Compose([]image.Image{thumb, nil, thumb, thumb, thumb}, 10, 2)
	assert.Equal(t, 20, sheet.Bounds().Dx())
	assert.Equal(t, 30, sheet.Bounds().Dy())

	// cell 1 (top right) stays white, cell 2 (middle left) is painted
	r, g, b, _ := sheet.At(15, 5).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
	r, _, _, _ = sheet.At(5, 15).RGBA()
	assert.Zero(t, r)

	narrow := Compose([]image.Image{thumb}, 10, 5)
	assert.Equal(t, 10, narrow.Bounds().Dx())
}

func TestSheetRendersAndCaches(t *testing.T) {
	srv, hits := newImageServer(t, map[string]bool{"_02.png": true})
	b := NewBuilder(Options{
		Dir:        t.TempDir(),
		ImageBase:  srv.URL + "/img",
		ThumbSize:  32,
		Columns:    2,
		HTTPClient: srv.Client(),
	})

	path, err := b.Sheet(context.Background(), "pjsk", "ichika", 3)
	require.NoError(t, err)
	assert.Equal(t, b.Path("pjsk", "ichika"), path)
	assert.Equal(t, int32(3), hits.Load())

	f, err := os.Open(path)
	require.NoError(t, err)
	img, err := png.Decode(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())

	_, err = b.Sheet(context.Background(), "pjsk", "ichika", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load(), "second call must be served from cache")

	require.NoError(t, b.Purge())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSheetFailsWhenNothingFetched(t *testing.T) {
	srv, _ := newImageServer(t, map[string]bool{".png": true})
	b := NewBuilder(Options{Dir: t.TempDir(), ImageBase: srv.URL, HTTPClient: srv.Client()})

	_, err := b.Sheet(context.Background(), "pjsk", "ghost", 2)
	assert.True(t, errors.Is(err, ErrNoImages))
	_, statErr := os.Stat(b.Path("pjsk", "ghost"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = b.Sheet(context.Background(), "pjsk", "ghost", 0)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestOversizedSourcesAreRejected(t *testing.T) {
	srv, _ := newImageServer(t, nil)
	b := NewBuilder(Options{Dir: t.TempDir(), ImageBase: srv.URL, MaxSourceBytes: 16, HTTPClient: srv.Client()})

	_, err := b.fetch(context.Background(), srv.URL+"/pjsk/saki/saki_01.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")

	_, err = b.Sheet(context.Background(), "pjsk", "saki", 2)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestSheetConcurrentCallsShareRender(t *testing.T) {
	srv, _ := newImageServer(t, nil)
	b := NewBuilder(Options{Dir: t.TempDir(), ImageBase: srv.URL, ThumbSize: 16, HTTPClient: srv.Client()})

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := b.Sheet(context.Background(), "pjsk", "saki", 4)
			assert.NoError(t, err)
			paths[i] = p
		}()
	}
	wg.Wait()
	for _, p := range paths {
		assert.Equal(t, b.Path("pjsk", "saki"), p)
	}
}

func TestPathIsConfinedToDir(t *testing.T) {
	b := NewBuilder(Options{Dir: "/cache"})
	assert.Equal(t, "/cache/pjsk/ichika.png", b.Path("pjsk", "ichika"))
	assert.Equal(t, "/cache/pjsk/passwd.png", b.Path("pjsk", "../../etc/passwd"))
}
