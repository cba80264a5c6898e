package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/stickerbot/core/telegram/state"
	"github.com/m3rciful/stickerbot/internal/catalog"
	"github.com/m3rciful/stickerbot/internal/history"
	"github.com/m3rciful/stickerbot/internal/sticker"
)

const testCatalog = `{
  "packs": {
    "pjsk": {"characters": {"ichika": {"styles": [1, 2, 3]}, "saki": {}}},
    "extra": {"characters": {"Miku": {"styles": ["a", "b"]}}}
  }
}`

type fakeRenderer struct {
	mu    sync.Mutex
	img   []byte
	err   error
	calls []sticker.Request
	panic bool
}

func (f *fakeRenderer) URL(req sticker.Request) string {
	return sticker.BuildURL("https://render.test/api", "https://img.test", req)
}

func (f *fakeRenderer) Fetch(_ context.Context, req sticker.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("renderer exploded")
	}
	f.calls = append(f.calls, req)
	return f.img, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, e history.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakeRecorder) Stats(context.Context, state.Key) (history.Stats, error) {
	return history.Stats{}, nil
}

func (f *fakeRecorder) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Outcome
	}
	return out
}

type brokenStore struct {
	state.Store[Session]
	failGet bool
	failSet bool
}

func (b *brokenStore) Get(ctx context.Context, key state.Key) (Session, bool, error) {
	if b.failGet {
		return Session{}, false, errors.New("store down")
	}
	return b.Store.Get(ctx, key)
}

func (b *brokenStore) Set(ctx context.Context, key state.Key, s Session) error {
	if b.failSet {
		return errors.New("store down")
	}
	return b.Store.Set(ctx, key, s)
}

type fixture struct {
	tracker  *Tracker
	store    *state.MemoryStore[Session]
	renderer *fakeRenderer
	recorder *fakeRecorder
	key      state.Key
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	f := &fixture{
		store:    state.NewMemoryStore[Session](),
		renderer: &fakeRenderer{img: []byte("png")},
		recorder: &fakeRecorder{},
		key:      state.NewKey("telegram", "42"),
	}
	opts := Options{Catalog: cat, Store: f.store, Renderer: f.renderer, Recorder: f.recorder}
	for _, m := range mutate {
		m(&opts)
	}
	f.tracker, err = NewTracker(opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) session(t *testing.T) (Session, bool) {
	t.Helper()
	s, ok, err := f.store.Get(context.Background(), f.key)
	require.NoError(t, err)
	return s, ok
}

func (f *fixture) advance(t *testing.T, input string) Reply {
	t.Helper()
	r, handled := f.tracker.Advance(context.Background(), f.key, input)
	require.True(t, handled, "input %q not handled", input)
	return r
}

func TestNewTrackerValidation(t *testing.T) {
	cat, _ := catalog.Parse([]byte(testCatalog))
	store := state.NewMemoryStore[Session]()
	r := &fakeRenderer{}

	_, err := NewTracker(Options{Store: store, Renderer: r})
	assert.Error(t, err)
	_, err = NewTracker(Options{Catalog: cat, Renderer: r})
	assert.Error(t, err)
	_, err = NewTracker(Options{Catalog: cat, Store: store})
	assert.Error(t, err)
	_, err = NewTracker(Options{Catalog: cat, Store: store, Renderer: r, StartStep: StepInputText})
	assert.Error(t, err)
	_, err = NewTracker(Options{Catalog: cat, Store: store, Renderer: r, Delivery: "fax"})
	assert.Error(t, err)

	tr, err := NewTracker(Options{Catalog: cat, Store: store, Renderer: r})
	require.NoError(t, err)
	assert.Equal(t, StepSelectPack, tr.StartStep())
}

func TestPackFirstHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.tracker.Start(ctx, f.key)
	assert.Equal(t, "Welcome to the sticker generator!\nChoose a sticker pack:\n- pjsk\n- extra\nEnter the pack name:", r.Text)
	assert.Equal(t, []string{"pjsk", "extra"}, r.Choices)
	assert.True(t, f.tracker.Active(ctx, f.key))

	r = f.advance(t, "  pjsk ")
	assert.Equal(t, "Selected pack: pjsk\nChoose a character:\n- ichika\n- saki\nEnter the character name:", r.Text)
	assert.Equal(t, []string{"ichika", "saki"}, r.Choices)

	r = f.advance(t, "ichika")
	assert.Equal(t, "Selected character: ichika\nChoose a style (enter a number):\n1. Style 1\n2. Style 2\n3. Style 3", r.Text)
	assert.Equal(t, []string{"1", "2", "3"}, r.Choices)

	r = f.advance(t, "3")
	assert.Equal(t, "Enter the text to display:", r.Text)
	s, _ := f.session(t)
	assert.Equal(t, Session{Step: StepInputText, Pack: "pjsk", Character: "ichika", StyleID: "03"}, s)

	r = f.advance(t, "hello world")
	assert.Equal(t, "Sticker ready! Send /sticker to make another one.", r.Text)
	assert.Equal(t, []byte("png"), r.Image)
	assert.True(t, r.Done)

	_, ok := f.session(t)
	assert.False(t, ok)
	require.Len(t, f.renderer.calls, 1)
	assert.Equal(t, sticker.Request{Pack: "pjsk", Character: "ichika", StyleID: "03", Text: "hello world"}, f.renderer.calls[0])
	require.Len(t, f.recorder.entries, 1)
	e := f.recorder.entries[0]
	assert.Equal(t, "completed", e.Outcome)
	assert.Equal(t, "telegram", e.Platform)
	assert.Equal(t, "42", e.Sender)
	assert.Equal(t, "https://render.test/api?path=https://img.test/pjsk/ichika/ichika_03.png&key=hello%20world", e.URL)
}

func TestCharacterFirstVariant(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.StartStep = StepSelectCharacter })

	r := f.tracker.Start(context.Background(), f.key)
	assert.Equal(t, "Welcome to the sticker generator!\nChoose a character:\n- ichika\n- saki\n- Miku\nEnter the character name:", r.Text)

	r = f.advance(t, "miku")
	assert.True(t, strings.HasPrefix(r.Text, "Selected character: Miku\n"))
	s, _ := f.session(t)
	assert.Equal(t, "extra", s.Pack)
	assert.Equal(t, "Miku", s.Character)
	assert.Equal(t, StepSelectStyle, s.Step)

	r = f.advance(t, "3")
	assert.Equal(t, "Please enter a number between 1-2:", r.Text)
}

func TestStartResetsPriorSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tracker.Start(ctx, f.key)
	f.advance(t, "pjsk")
	f.advance(t, "ichika")
	s, _ := f.session(t)
	require.Equal(t, StepSelectStyle, s.Step)

	f.tracker.Start(ctx, f.key)
	s, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, Session{Step: StepSelectPack}, s)
}

func TestValidationKeepsStep(t *testing.T) {
	f := newFixture(t)
	f.tracker.Start(context.Background(), f.key)

	r := f.advance(t, "PJSK")
	assert.Equal(t, "Sticker pack not found, please try again:", r.Text)
	s, _ := f.session(t)
	assert.Equal(t, StepSelectPack, s.Step)

	f.advance(t, "pjsk")
	r = f.advance(t, "Miku")
	assert.Equal(t, "Character not found, please try again:", r.Text)
	r = f.advance(t, "ICHIKA")
	assert.Equal(t, "Character not found, please try again:", r.Text)
	s, _ = f.session(t)
	assert.Equal(t, StepSelectCharacter, s.Step)

	f.advance(t, "saki")
	for _, bad := range []string{"two", "1.5", ""} {
		r = f.advance(t, bad)
		assert.Equal(t, "Please enter a valid number:", r.Text, "input %q", bad)
	}
	for _, bad := range []string{"0", "11", "-1"} {
		r = f.advance(t, bad)
		assert.Equal(t, "Please enter a number between 1-10:", r.Text, "input %q", bad)
	}
	s, _ = f.session(t)
	assert.Equal(t, StepSelectStyle, s.Step)
	assert.Empty(t, s.StyleID)

	f.advance(t, "10")
	s, _ = f.session(t)
	assert.Equal(t, "10", s.StyleID)
	assert.Empty(t, f.recorder.entries)
}

func TestQuitAtEveryStep(t *testing.T) {
	inputs := [][]string{
		{},
		{"pjsk"},
		{"pjsk", "ichika"},
		{"pjsk", "ichika", "2"},
	}
	for i, prefix := range inputs {
		t.Run(fmt.Sprintf("after_%d_steps", i), func(t *testing.T) {
			f := newFixture(t)
			f.tracker.Start(context.Background(), f.key)
			for _, in := range prefix {
				f.advance(t, in)
			}
			r := f.advance(t, "  QuIt ")
			assert.Equal(t, MsgCancelled, r.Text)
			assert.True(t, r.Done)
			_, ok := f.session(t)
			assert.False(t, ok)
			assert.Empty(t, f.renderer.calls)
		})
	}
}

func TestCancelWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, handled := f.tracker.Cancel(context.Background(), f.key)
	assert.False(t, handled)

	_, handled = f.tracker.Advance(context.Background(), f.key, "quit")
	assert.False(t, handled)

	f.tracker.Start(context.Background(), f.key)
	r, handled := f.tracker.Cancel(context.Background(), f.key)
	assert.True(t, handled)
	assert.Equal(t, MsgCancelled, r.Text)
}

func TestMessagesWithoutSessionAreIgnored(t *testing.T) {
	f := newFixture(t)
	r, handled := f.tracker.Advance(context.Background(), f.key, "pjsk")
	assert.False(t, handled)
	assert.Empty(t, r.Text)
	assert.False(t, f.tracker.Active(context.Background(), f.key))
}

func TestUnknownStepIsIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), f.key, Session{Step: "dance"}))

	_, handled := f.tracker.Advance(context.Background(), f.key, "pjsk")
	assert.False(t, handled)
	s, ok := f.session(t)
	assert.True(t, ok)
	assert.Equal(t, Step("dance"), s.Step)
}

func TestStepValid(t *testing.T) {
	for _, s := range []Step{StepSelectPack, StepSelectCharacter, StepSelectStyle, StepInputText} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Step("").Valid())
	assert.False(t, Step("dance").Valid())
}

func driveToText(t *testing.T, f *fixture) {
	t.Helper()
	f.tracker.Start(context.Background(), f.key)
	f.advance(t, "pjsk")
	f.advance(t, "ichika")
	f.advance(t, "1")
}

func TestFetchStatusFailureDropsSession(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = &sticker.StatusError{StatusCode: 502, Status: "502 Bad Gateway"}
	driveToText(t, f)

	r := f.advance(t, "hi")
	assert.Equal(t, "Image generation failed, please try again. Send /sticker to start over.", r.Text)
	assert.Nil(t, r.Image)
	_, ok := f.session(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"fetch_failed"}, f.recorder.outcomes())
}

func TestFetchTransportFailureDropsSession(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.New("connection reset")
	driveToText(t, f)

	r := f.advance(t, "hi")
	assert.Equal(t, "Image download failed: connection reset\nSend /sticker to start over.", r.Text)
	_, ok := f.session(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"fetch_failed"}, f.recorder.outcomes())
}

func TestPanicInsideStepDropsSession(t *testing.T) {
	f := newFixture(t)
	f.renderer.panic = true
	driveToText(t, f)

	r := f.advance(t, "hi")
	assert.Equal(t, "Something went wrong, please start over.", r.Text)
	_, ok := f.session(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"errored"}, f.recorder.outcomes())
}

func TestStoreFailureDropsSession(t *testing.T) {
	f := newFixture(t)
	broken := &brokenStore{Store: f.store}
	tr, err := NewTracker(Options{Catalog: f.tracker.catalog, Store: broken, Renderer: f.renderer, Recorder: f.recorder})
	require.NoError(t, err)

	tr.Start(context.Background(), f.key)
	broken.failSet = true
	r, handled := tr.Advance(context.Background(), f.key, "pjsk")
	assert.True(t, handled)
	assert.Equal(t, "Something went wrong, please start over.", r.Text)
	_, ok := f.session(t)
	assert.False(t, ok)

	broken.failSet = false
	broken.failGet = true
	r, handled = tr.Advance(context.Background(), f.key, "pjsk")
	assert.True(t, handled)
	assert.Equal(t, "Something went wrong, please start over.", r.Text)
	assert.Equal(t, []string{"errored", "errored"}, f.recorder.outcomes())
}

func TestURLDeliverySkipsFetch(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Delivery = DeliveryURL })
	driveToText(t, f)

	r := f.advance(t, "a/b c")
	assert.Equal(t, "https://render.test/api?path=https://img.test/pjsk/ichika/ichika_01.png&key=a/b%20c", r.ImageURL)
	assert.Nil(t, r.Image)
	assert.Empty(t, f.renderer.calls)
	_, ok := f.session(t)
	assert.False(t, ok)
}

func TestRecorderErrorDoesNotAffectReply(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("db down")
	driveToText(t, f)

	r := f.advance(t, "hi")
	assert.Equal(t, "Sticker ready! Send /sticker to make another one.", r.Text)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	f := newFixture(t)
	other := state.NewKey("discord", "42")
	ctx := context.Background()

	f.tracker.Start(ctx, f.key)
	f.tracker.Start(ctx, other)
	f.advance(t, "pjsk")

	s, ok, err := f.store.Get(ctx, other)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StepSelectPack, s.Step)
}

func TestConcurrentAdvanceIsSerialised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tracker.Start(ctx, f.key)
	f.advance(t, "pjsk")
	f.advance(t, "ichika")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.tracker.Advance(ctx, f.key, "2")
		}()
	}
	wg.Wait()

	// The first "2" selects the style, the second finishes the flow with text "2",
	// every later message finds no session.
	assert.Len(t, f.renderer.calls, 1)
	_, ok := f.session(t)
	assert.False(t, ok)
	assert.Zero(t, f.tracker.locks.size())
}
