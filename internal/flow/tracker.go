package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/stickerbot/core/logger"
	"github.com/m3rciful/stickerbot/core/telegram/state"
	"github.com/m3rciful/stickerbot/internal/catalog"
	"github.com/m3rciful/stickerbot/internal/history"
	"github.com/m3rciful/stickerbot/internal/sticker"
)

// Renderer produces the final sticker for a completed selection.
type Renderer interface {
	URL(req sticker.Request) string
	Fetch(ctx context.Context, req sticker.Request) ([]byte, error)
}

// Options configure a Tracker.
type Options struct {
	Catalog  *catalog.Catalog
	Store    state.Store[Session]
	Renderer Renderer
	// Recorder receives every finished flow. Nil disables history.
	Recorder history.Recorder
	// StartStep is StepSelectPack (default) or StepSelectCharacter.
	StartStep Step
	Delivery  Delivery
}

// Tracker owns the sessions of all conversations and advances them one
// message at a time per identity.
type Tracker struct {
	catalog   *catalog.Catalog
	store     state.Store[Session]
	renderer  Renderer
	recorder  history.Recorder
	startStep Step
	delivery  Delivery
	locks     *keyLock
	steps     map[Step]stepFunc
}

type stepFunc func(ctx context.Context, s *Session, input string) stepResult

// stepResult describes what a step did with the session.
type stepResult struct {
	reply   Reply
	outcome Outcome
	// keep persists the (possibly mutated) session; otherwise it is deleted.
	keep bool
	err  error
	url  string
}

// NewTracker validates opts and returns a Tracker.
func NewTracker(opts Options) (*Tracker, error) {
	if opts.Catalog == nil {
		return nil, errors.New("flow: catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("flow: store is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("flow: renderer is required")
	}
	if opts.StartStep == "" {
		opts.StartStep = StepSelectPack
	}
	if opts.StartStep != StepSelectPack && opts.StartStep != StepSelectCharacter {
		return nil, fmt.Errorf("flow: unsupported start step %q", opts.StartStep)
	}
	switch opts.Delivery {
	case "":
		opts.Delivery = DeliveryUpload
	case DeliveryUpload, DeliveryURL:
	default:
		return nil, fmt.Errorf("flow: unsupported delivery %q", opts.Delivery)
	}
	if opts.Recorder == nil {
		opts.Recorder = history.Nop{}
	}

	t := &Tracker{
		catalog:   opts.Catalog,
		store:     opts.Store,
		renderer:  opts.Renderer,
		recorder:  opts.Recorder,
		startStep: opts.StartStep,
		delivery:  opts.Delivery,
		locks:     newKeyLock(),
	}
	t.steps = map[Step]stepFunc{
		StepSelectPack:      t.selectPack,
		StepSelectCharacter: t.selectCharacter,
		StepSelectStyle:     t.selectStyle,
		StepInputText:       t.inputText,
	}
	return t, nil
}

// StartStep returns the step new sessions begin at.
func (t *Tracker) StartStep() Step {
	return t.startStep
}

// Start creates or overwrites the session of key and returns the welcome prompt.
func (t *Tracker) Start(ctx context.Context, key state.Key) Reply {
	unlock := t.locks.Lock(key)
	defer unlock()

	if err := t.store.Set(ctx, key, Session{Step: t.startStep}); err != nil {
		t.fail(ctx, key, Session{Step: t.startStep}, fmt.Errorf("store session: %w", err))
		return Reply{Text: msgGeneric, Done: true}
	}
	logger.Info(ctx, logger.CompFlow, "flow.start",
		slog.String("status", "ok"),
		slog.String("step", string(t.startStep)),
	)

	if t.startStep == StepSelectCharacter {
		chars := t.catalog.AllCharacters()
		return Reply{
			Text:    msgWelcome + "\n" + bulletList(msgChooseCharacter, chars, msgEnterCharacter),
			Choices: chars,
		}
	}
	packs := t.catalog.PackNames()
	return Reply{
		Text:    msgWelcome + "\n" + bulletList(msgChoosePack, packs, msgEnterPack),
		Choices: packs,
	}
}

// Active reports whether key has a session.
func (t *Tracker) Active(ctx context.Context, key state.Key) bool {
	_, ok, err := t.store.Get(ctx, key)
	return err == nil && ok
}

// Cancel deletes the session of key. The bool is false when there was none.
func (t *Tracker) Cancel(ctx context.Context, key state.Key) (Reply, bool) {
	unlock := t.locks.Lock(key)
	defer unlock()
	return t.cancelLocked(ctx, key)
}

func (t *Tracker) cancelLocked(ctx context.Context, key state.Key) (Reply, bool) {
	s, ok, err := t.store.Get(ctx, key)
	if err != nil {
		t.fail(ctx, key, Session{}, fmt.Errorf("load session: %w", err))
		return Reply{Text: msgGeneric, Done: true}, true
	}
	if !ok {
		return Reply{}, false
	}
	if err := t.store.Delete(ctx, key); err != nil {
		logger.Warn(ctx, logger.CompFlow, "flow.cancel",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	logger.Info(ctx, logger.CompFlow, "flow.cancel",
		slog.String("status", "cancelled"),
		slog.String("step", string(s.Step)),
		slog.String("outcome", string(OutcomeCancelled)),
	)
	return Reply{Text: MsgCancelled, Done: true}, true
}

// Advance applies one message to the session of key. The bool is false when
// the message is not part of a conversation: no session exists or the session
// is at an unknown step.
func (t *Tracker) Advance(ctx context.Context, key state.Key, input string) (Reply, bool) {
	unlock := t.locks.Lock(key)
	defer unlock()

	input = strings.TrimSpace(input)
	if strings.EqualFold(input, CancelKeyword) {
		return t.cancelLocked(ctx, key)
	}

	s, ok, err := t.store.Get(ctx, key)
	if err != nil {
		t.fail(ctx, key, Session{}, fmt.Errorf("load session: %w", err))
		return Reply{Text: msgGeneric, Done: true}, true
	}
	if !ok {
		return Reply{}, false
	}
	if !s.Step.Valid() {
		logger.Warn(ctx, logger.CompFlow, "flow.unknown_step",
			slog.String("status", "skip"),
			slog.String("step", string(s.Step)),
		)
		return Reply{}, false
	}
	step := t.steps[s.Step]

	start := time.Now()
	from := s.Step
	res := t.runStep(ctx, step, &s, input)

	if res.err != nil && res.outcome == OutcomeErrored {
		t.fail(ctx, key, s, res.err)
		return res.reply, true
	}

	if res.keep {
		if err := t.store.Set(ctx, key, s); err != nil {
			t.fail(ctx, key, s, fmt.Errorf("store session: %w", err))
			return Reply{Text: msgGeneric, Done: true}, true
		}
	} else {
		if err := t.store.Delete(ctx, key); err != nil {
			logger.Warn(ctx, logger.CompFlow, "flow.delete",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		t.record(ctx, key, s, res.outcome, res.url, res.err)
	}

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("step", string(from)),
		slog.String("outcome", string(res.outcome)),
		slog.Duration("duration", time.Since(start)),
	}
	if res.keep {
		attrs = append(attrs, slog.String("next_step", string(s.Step)))
	}
	if res.err != nil {
		attrs = append(attrs, slog.String("err", res.err.Error()))
	}
	logger.Info(ctx, logger.CompFlow, "flow.step", attrs...)
	return res.reply, true
}

// runStep executes step and converts a panic into an errored result.
func (t *Tracker) runStep(ctx context.Context, step stepFunc, s *Session, input string) (res stepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = stepResult{
				reply:   Reply{Text: msgGeneric, Done: true},
				outcome: OutcomeErrored,
				err:     fmt.Errorf("step %s panicked: %v", s.Step, r),
			}
		}
	}()
	return step(ctx, s, input)
}

func (t *Tracker) selectPack(_ context.Context, s *Session, input string) stepResult {
	if !t.catalog.HasPack(input) {
		return reprompt(msgPackNotFound)
	}
	chars, err := t.catalog.Characters(input)
	if err != nil {
		return errored(err)
	}
	s.Pack = input
	s.Step = StepSelectCharacter
	return stepResult{
		reply: Reply{
			Text:    "Selected pack: " + input + "\n" + bulletList(msgChooseCharacter, chars, msgEnterCharacter),
			Choices: chars,
		},
		outcome: OutcomeAdvanced,
		keep:    true,
	}
}

func (t *Tracker) selectCharacter(_ context.Context, s *Session, input string) stepResult {
	var pack, character string
	if s.Pack != "" {
		if !t.catalog.HasCharacter(s.Pack, input) {
			return reprompt(msgCharNotFound)
		}
		pack, character = s.Pack, input
	} else {
		var err error
		pack, character, err = t.catalog.FindCharacter(input)
		if errors.Is(err, catalog.ErrNotFound) {
			return reprompt(msgCharNotFound)
		}
		if err != nil {
			return errored(err)
		}
	}

	s.Pack = pack
	s.Character = character
	s.Step = StepSelectStyle
	count := t.catalog.StyleCount(pack, character)
	return stepResult{
		reply: Reply{
			Text:    "Selected character: " + character + "\n" + styleList(count),
			Choices: styleChoices(count),
		},
		outcome: OutcomeAdvanced,
		keep:    true,
	}
}

func (t *Tracker) selectStyle(_ context.Context, s *Session, input string) stepResult {
	n, err := strconv.Atoi(input)
	if err != nil {
		return reprompt(msgNotNumber)
	}
	count := t.catalog.StyleCount(s.Pack, s.Character)
	if n < 1 || n > count {
		return reprompt(fmt.Sprintf(msgOutOfRange, count))
	}
	s.StyleID = sticker.FormatStyleID(n)
	s.Step = StepInputText
	return stepResult{
		reply:   Reply{Text: msgEnterText},
		outcome: OutcomeAdvanced,
		keep:    true,
	}
}

func (t *Tracker) inputText(ctx context.Context, s *Session, input string) stepResult {
	s.Text = input
	req := sticker.Request{
		Pack:      s.Pack,
		Character: s.Character,
		StyleID:   s.StyleID,
		Text:      s.Text,
	}
	url := t.renderer.URL(req)

	if t.delivery == DeliveryURL {
		return stepResult{
			reply:   Reply{Text: msgDone, ImageURL: url, Done: true},
			outcome: OutcomeCompleted,
			url:     url,
		}
	}

	img, err := t.renderer.Fetch(ctx, req)
	if err != nil {
		var statusErr *sticker.StatusError
		text := fmt.Sprintf(msgDownloadFailed, err)
		if errors.As(err, &statusErr) {
			text = msgGenerationFailed
		}
		return stepResult{
			reply:   Reply{Text: text, Done: true},
			outcome: OutcomeFetchFailed,
			err:     err,
			url:     url,
		}
	}
	return stepResult{
		reply:   Reply{Text: msgDone, Image: img, Done: true},
		outcome: OutcomeCompleted,
		url:     url,
	}
}

func reprompt(text string) stepResult {
	return stepResult{reply: Reply{Text: text}, outcome: OutcomeReprompt, keep: true}
}

func errored(err error) stepResult {
	return stepResult{
		reply:   Reply{Text: msgGeneric, Done: true},
		outcome: OutcomeErrored,
		err:     err,
	}
}

// fail drops the session after an unexpected error and records it.
func (t *Tracker) fail(ctx context.Context, key state.Key, s Session, err error) {
	if delErr := t.store.Delete(ctx, key); delErr != nil {
		logger.Warn(ctx, logger.CompFlow, "flow.delete",
			slog.String("status", "fail"),
			slog.String("err", delErr.Error()),
		)
	}
	logger.Error(ctx, logger.CompFlow, "flow.failed",
		slog.String("status", "fail"),
		slog.String("step", string(s.Step)),
		slog.String("outcome", string(OutcomeErrored)),
		slog.String("err", err.Error()),
	)
	t.record(ctx, key, s, OutcomeErrored, "", err)
}

func (t *Tracker) record(ctx context.Context, key state.Key, s Session, outcome Outcome, url string, cause error) {
	e := history.Entry{
		Platform:  key.Platform,
		Sender:    key.Sender,
		Pack:      s.Pack,
		Character: s.Character,
		StyleID:   s.StyleID,
		Text:      s.Text,
		Outcome:   string(outcome),
		URL:       url,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := t.recorder.Record(ctx, e); err != nil {
		logger.Warn(ctx, logger.CompHistory, "history.record",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
