// Package translator holds the text pair being translated and drives the
// translate, speech and feedback calls around it.
package translator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"traductor/api"
	"traductor/audio"
	"traductor/clipboard"
	"traductor/lang"
	"traductor/log"
)

// Client is the part of the REST API the translator uses.
type Client interface {
	Translate(ctx context.Context, req api.TranslateRequest) (*api.Translation, error)
	TextToSpeech(ctx context.Context, req api.TTSRequest) (*api.Speech, error)
	AcceptTranslation(ctx context.Context, f api.Feedback) (*api.Suggestion, error)
	RejectTranslation(ctx context.Context, f api.Feedback, suggestion string, uncertain bool) (*api.Suggestion, error)
	AddSuggestion(ctx context.Context, s api.GeneralSuggestion) error
	SignedIn() bool
}

type Code string

const (
	CodeSlow        Code = "slow"
	CodeRetry       Code = "retry"
	CodeFailed      Code = "failed"
	CodeSignIn      Code = "sign_in"
	CodeRestricted  Code = "restricted"
	CodeSent        Code = "feedback_sent"
	CodeCopied      Code = "copied"
	CodeCopyFailed  Code = "copy_failed"
	CodeNoSpeech    Code = "speech_unavailable"
	CodeSpeakFailed Code = "speak_failed"
)

type Notice struct {
	Code    Code
	Message string
}

// Sink receives notices and state updates. It may be called from any
// goroutine.
type Sink interface {
	Notice(n Notice)
	Updated(s State)
}

type NopSink struct{}

func (NopSink) Notice(Notice) {}
func (NopSink) Updated(State) {}

var (
	ErrRestricted  = errors.New("sign in to use this feature")
	ErrBusy        = errors.New("a translation is already running")
	ErrNothingToDo = errors.New("no translation to act on")
	ErrNoSpeech    = errors.New("speech is not available for this language")
	// ErrSuperseded is returned by a translation replaced by a newer one.
	ErrSuperseded = errors.New("translation superseded")
)

// State is a snapshot of the translator.
type State struct {
	SrcText string
	DstText string
	SrcLang lang.Language
	DstLang lang.Language
	Model   api.Model
	Loading bool
}

// Auth lists which features need a signed-in user.
type Auth struct {
	Translation bool
	Speech      bool
}

type Options struct {
	MaxWords int
	// Debounce delays the automatic translation after an edit.
	Debounce time.Duration
	// SlowAfter is when the "still translating" notice appears.
	SlowAfter       time.Duration
	Auth            Auth
	Capabilities    lang.Capabilities
	TTSModel        string
	TTSModelVersion string
	Audio           *audio.Shared
	// Copy defaults to the system clipboard.
	Copy func(string) error
}

func DefaultOptions() Options {
	return Options{
		Debounce:  1500 * time.Millisecond,
		SlowAfter: 5 * time.Second,
	}
}

type Translator struct {
	client Client
	sink   Sink
	opts   Options

	mu       sync.Mutex
	state    State
	gen      uint64
	debounce *time.Timer
	closed   bool
	// req numbers translation requests. Only the latest may write a result.
	req       uint64
	cancelReq context.CancelFunc
}

func New(client Client, sink Sink, src, dst lang.Language, opts Options) *Translator {
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.SlowAfter <= 0 {
		opts.SlowAfter = def.SlowAfter
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.Copy
	}
	if opts.Audio == nil {
		opts.Audio = audio.Default()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Translator{
		client: client,
		sink:   sink,
		opts:   opts,
		state:  State{SrcLang: src, DstLang: dst},
	}
}

func (t *Translator) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TranslationRestricted reports whether the current user may not translate.
func (t *Translator) TranslationRestricted() bool {
	return lang.Restricted(true, t.opts.Auth.Translation, t.client.SignedIn())
}

// SetSource replaces the source text, applying the word limit, and
// schedules an automatic translation.
func (t *Translator) SetSource(text string) {
	t.mu.Lock()
	t.state.SrcText = Truncate(text, t.opts.MaxWords)
	st := t.state
	t.scheduleLocked()
	t.mu.Unlock()
	t.sink.Updated(st)
}

// SetLanguages changes the pair and schedules an automatic translation.
func (t *Translator) SetLanguages(src, dst lang.Language) {
	t.mu.Lock()
	t.state.SrcLang, t.state.DstLang = src, dst
	st := t.state
	t.scheduleLocked()
	t.mu.Unlock()
	t.sink.Updated(st)
}

// Swap exchanges source and target, text included.
func (t *Translator) Swap() error {
	t.mu.Lock()
	if t.state.Loading {
		t.mu.Unlock()
		return ErrBusy
	}
	t.swapLocked()
	t.state.SrcText, t.state.DstText = t.state.DstText, t.state.SrcText
	st := t.state
	t.scheduleLocked()
	t.mu.Unlock()
	t.sink.Updated(st)
	return nil
}

func (t *Translator) swapLocked() {
	t.state.SrcLang, t.state.DstLang = t.state.DstLang, t.state.SrcLang
}

// HandOff takes a confirmed transcript. When swap is set the transcript is
// in the target language, so the pair is exchanged first. Any pending
// automatic translation is dropped and the text is translated exactly once.
func (t *Translator) HandOff(text string, swap bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if swap {
		t.swapLocked()
	}
	t.stopDebounceLocked()
	t.state.SrcText = Truncate(text, t.opts.MaxWords)
	t.state.DstText = ""
	st := t.state
	t.mu.Unlock()

	t.sink.Updated(st)
	go func() {
		if err := t.translate(context.Background(), true); err != nil && !quiet(err) {
			log.Warnf("translator: hand-off translation: %v", err)
		}
	}()
}

// quiet reports errors of background translations that need no log line.
func quiet(err error) bool {
	return errors.Is(err, ErrSuperseded) || errors.Is(err, context.Canceled)
}

func (t *Translator) scheduleLocked() {
	t.stopDebounceLocked()
	if t.closed {
		return
	}
	t.gen++
	gen := t.gen
	t.debounce = time.AfterFunc(t.opts.Debounce, func() {
		t.mu.Lock()
		current := t.gen == gen && !t.closed
		t.mu.Unlock()
		if !current {
			return
		}
		if err := t.translate(context.Background(), true); err != nil && !quiet(err) {
			log.Warnf("translator: auto translation: %v", err)
		}
	})
}

func (t *Translator) stopDebounceLocked() {
	if t.debounce != nil {
		t.debounce.Stop()
		t.debounce = nil
	}
	t.gen++
}

// Translate sends the source text now. An empty source clears the result
// without a request. It fails with ErrBusy while another translation runs.
func (t *Translator) Translate(ctx context.Context) error {
	return t.translate(ctx, false)
}

// translate runs one request. With supersede set, a request in flight is
// cancelled and its result discarded. A result is also discarded when the
// pair or source text changed while it was computed.
func (t *Translator) translate(ctx context.Context, supersede bool) error {
	if t.TranslationRestricted() {
		t.notice(CodeRestricted, "Sign in to use the translator")
		return ErrRestricted
	}
	t.mu.Lock()
	if t.state.Loading && !supersede {
		t.mu.Unlock()
		return ErrBusy
	}
	t.abortRequestLocked()
	t.req++
	id := t.req
	if t.state.SrcText == "" {
		t.state.DstText = ""
		st := t.state
		t.mu.Unlock()
		t.sink.Updated(st)
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.cancelReq = cancel
	t.state.Loading = true
	req := api.TranslateRequest{SrcText: t.state.SrcText, SrcLang: t.state.SrcLang, DstLang: t.state.DstLang}
	st := t.state
	t.mu.Unlock()
	t.sink.Updated(st)

	slow := time.AfterFunc(t.opts.SlowAfter, func() {
		t.mu.Lock()
		current := t.req == id
		t.mu.Unlock()
		if current {
			t.notice(CodeSlow, "Translation is taking longer than expected, the model may be loading")
		}
	})
	start := time.Now()
	res, err := t.client.Translate(ctx, req)
	slow.Stop()

	t.mu.Lock()
	if t.req != id {
		t.mu.Unlock()
		return ErrSuperseded
	}
	t.state.Loading = false
	t.cancelReq = nil
	stale := t.state.SrcText != req.SrcText ||
		t.state.SrcLang.Code != req.SrcLang.Code || t.state.DstLang.Code != req.DstLang.Code
	if err == nil && !stale {
		t.state.DstText = res.DstText
		t.state.Model = res.Model
	}
	st = t.state
	t.mu.Unlock()
	t.sink.Updated(st)

	if err != nil {
		t.reportError(err, CodeRetry, "Please retry the translation")
		return err
	}
	if stale {
		return ErrSuperseded
	}
	log.TranslationMetrics(req.SrcLang.Code, req.DstLang.Code, res.Model.Name, CountWords(req.SrcText), time.Since(start))
	return nil
}

// abortRequestLocked cancels the request in flight, if any, and clears the
// loading flag it set.
func (t *Translator) abortRequestLocked() {
	if t.cancelReq != nil {
		t.cancelReq()
		t.cancelReq = nil
	}
	t.state.Loading = false
}

// reportError maps API failures to notices. badRequest is used for 400.
func (t *Translator) reportError(err error, badRequest Code, msg string) {
	switch {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, api.ErrUnauthorized):
		t.notice(CodeSignIn, "Sign in to use every feature of the application")
	case api.IsStatus(err, http.StatusBadRequest):
		t.notice(badRequest, msg)
	default:
		t.notice(CodeFailed, err.Error())
	}
}

// Copy puts the translation on the clipboard.
func (t *Translator) Copy() error {
	dst := t.State().DstText
	if dst == "" {
		return ErrNothingToDo
	}
	if err := t.opts.Copy(dst); err != nil {
		t.notice(CodeCopyFailed, "Could not copy the text to the clipboard")
		return err
	}
	t.notice(CodeCopied, "Copied")
	return nil
}

// Close stops pending automatic translations.
func (t *Translator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.stopDebounceLocked()
	t.req++
	t.abortRequestLocked()
}

func (t *Translator) notice(code Code, msg string) {
	log.Notice("translator", string(code), msg)
	t.sink.Notice(Notice{Code: code, Message: msg})
}
