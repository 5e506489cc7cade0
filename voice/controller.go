package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"traductor/audio"
	"traductor/log"
	"traductor/media"
)

type Config struct {
	Timing    Timing
	Capture   audio.CaptureConfig
	Device    *audio.DeviceInfo
	Container media.Container
	// Language is the code sent with every transcription request.
	Language        string
	ASRModel        string
	ASRModelVersion string
	MaxUploadMB     int
	Tools           media.Tools
	// Cues plays short tones when recording starts and stops.
	Cues bool
	// BlankDraft starts the review with an empty text for the user to
	// type, instead of the transcript.
	BlankDraft bool
	TempDir    string
}

type timerName string

const (
	timerMaxDuration timerName = "max_duration"
	timerSafeguard   timerName = "safeguard"
	timerSlow        timerName = "slow_notice"
)

// Controller owns microphone capture, recording, transcription and the
// review of one dictation at a time.
type Controller struct {
	cfg     Config
	audio   *audio.Shared
	stt     Transcriber
	handoff Handoff
	sink    EventSink
	events  *dispatcher
	res     *Resources

	mu        sync.Mutex
	state     State
	gen       uint64
	busy      bool
	closed    bool
	lastEnd   time.Time
	side      Side
	sessionID string
	sess      *session
	artifact  *media.Artifact
	draft     *Draft
	// confirming freezes the draft while Confirm validates it.
	confirming bool
	timers     map[timerName]*time.Timer
	// cancelRequest aborts the transcription in flight. Only one request
	// exists at a time.
	cancelRequest context.CancelFunc
	opCtx         context.Context
	opCancel      context.CancelFunc
	playback      context.CancelFunc
}

func New(shared *audio.Shared, stt Transcriber, handoff Handoff, sink EventSink, cfg Config) *Controller {
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture = audio.DefaultCaptureConfig()
	}
	if cfg.Container == "" {
		cfg.Container = media.ContainerWAV
	}
	if cfg.Tools == (media.Tools{}) {
		cfg.Tools = media.DefaultTools()
	}
	if sink == nil {
		sink = NopSink{}
	}
	if shared == nil {
		shared = audio.Default()
	}
	c := &Controller{
		cfg:     cfg,
		audio:   shared,
		stt:     stt,
		handoff: handoff,
		sink:    sink,
		events:  newDispatcher(),
		res:     NewResources(cfg.TempDir),
		state:   StateIdle,
		side:    SideSource,
		timers:  make(map[timerName]*time.Timer),
	}
	c.opCtx, c.opCancel = context.WithCancel(context.Background())
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state, draft and artifact details.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state, Side: c.side}
	if c.draft != nil {
		d := *c.draft
		st.Draft = &d
	}
	if c.artifact != nil {
		st.Duration = c.artifact.Duration
		st.Truncated = c.artifact.Truncated
	}
	if c.sess != nil && c.state == StateRecording {
		st.Elapsed = time.Since(c.sess.startedAt)
	}
	return st
}

// Resources exposes the temp files held for playback.
func (c *Controller) Resources() *Resources { return c.res }

// SetLanguage changes the language code used for the next transcription.
func (c *Controller) SetLanguage(code string) {
	c.mu.Lock()
	c.cfg.Language = code
	c.mu.Unlock()
}

// SetDevice selects the microphone for the next recording; nil means the
// system default.
func (c *Controller) SetDevice(d *audio.DeviceInfo) {
	c.mu.Lock()
	c.cfg.Device = d
	c.mu.Unlock()
}

// Open shows the voice dialog: idle or error becomes ready.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	switch c.state {
	case StateIdle, StateError:
	default:
		return fmt.Errorf("%w: open from %s", ErrInvalidState, c.state)
	}
	c.resetLocked(StateReady, ReasonOpened)
	return nil
}

// SetSide selects which language slot the transcript belongs to. It is
// allowed in any state and also retags a pending draft.
func (c *Controller) SetSide(side Side) error {
	if !side.Valid() {
		return fmt.Errorf("invalid side %q", side)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.side = side
	if c.draft != nil {
		c.draft.Side = side
	}
	return nil
}

// Cancel abandons whatever is in progress and returns to idle. It is safe
// to call repeatedly.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTranscribing && c.cancelRequest != nil {
		c.noticeLocked(NoticeCancelled, CodeTranscriptionCancelled, "Transcription cancelled")
		c.resetLocked(StateIdle, ReasonTranscriptionCancelled)
		return
	}
	c.resetLocked(StateIdle, ReasonCancelled)
}

// Close cancels everything, releases the shared audio context and flushes
// pending events. The controller cannot be reopened.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.resetLocked(StateIdle, ReasonClosed)
	c.opCancel()
	c.mu.Unlock()

	c.audio.Close()
	c.events.close()
}

func (c *Controller) transitionLocked(to State, reason Reason) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	log.StateChange(c.sessionID, string(from), string(to), string(reason))
	c.events.post(func() { c.sink.StateChanged(from, to, reason) })
}

func (c *Controller) noticeLocked(kind NoticeKind, code NoticeCode, msg string) {
	n := Notice{Kind: kind, Code: code, Message: msg}
	log.Notice(string(kind), string(code), msg)
	c.events.post(func() { c.sink.Notice(n) })
}

// notify emits a notice only if gen is still current.
func (c *Controller) notify(gen uint64, kind NoticeKind, code NoticeCode, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.noticeLocked(kind, code, msg)
}

// fail reports an error and resets, unless gen is stale.
func (c *Controller) fail(gen uint64, to State, reason Reason, code NoticeCode, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.noticeLocked(NoticeError, code, msg)
	c.resetLocked(to, reason)
}

func (c *Controller) armLocked(name timerName, d time.Duration, fn func()) {
	if t, ok := c.timers[name]; ok {
		t.Stop()
	}
	c.timers[name] = time.AfterFunc(d, fn)
}

func (c *Controller) disarmLocked(name timerName) {
	if t, ok := c.timers[name]; ok {
		t.Stop()
		delete(c.timers, name)
	}
}

// resetLocked is the single exit path: it invalidates in-flight work,
// releases the microphone, timers, request and temp files, then moves to
// the given state.
func (c *Controller) resetLocked(to State, reason Reason) {
	c.gen++
	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}
	if c.cancelRequest != nil {
		c.cancelRequest()
		c.cancelRequest = nil
	}
	if !c.closed {
		c.opCancel()
		c.opCtx, c.opCancel = context.WithCancel(context.Background())
	}
	if c.playback != nil {
		c.playback()
		c.playback = nil
	}
	if s := c.sess; s != nil {
		c.sess = nil
		s.abort()
		s.release()
		s.rec.stop()
		c.lastEnd = time.Now()
	}
	c.artifact = nil
	c.draft = nil
	c.confirming = false
	c.res.ReleaseAll()
	c.audio.Suspend()
	c.transitionLocked(to, reason)
}

func (c *Controller) cue(q audio.Cue) {
	if !c.cfg.Cues {
		return
	}
	go func() {
		actx, err := c.audio.Resume()
		if err != nil {
			return
		}
		p, err := actx.NewPlayer()
		if err != nil {
			return
		}
		audio.PlayCue(p, q)
	}()
}
