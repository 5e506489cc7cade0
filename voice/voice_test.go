package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"traductor/api"
	"traductor/audio"
	"traductor/media"
)

func sinePCM(d time.Duration) []byte {
	n := int(d.Seconds() * audio.SampleRate)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(0.3 * 32767 * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func testTiming() Timing {
	return Timing{
		UnmuteTimeout: 200 * time.Millisecond,
		FlushInterval: 20 * time.Millisecond,
		MaxDuration:   5 * time.Second,
		QuickCancel:   100 * time.Millisecond,
		Settle:        5 * time.Millisecond,
		Safeguard:     2 * time.Second,
		ProbeTimeout:  time.Second,
		SlowNotice:    5 * time.Second,
		TickInterval:  20 * time.Millisecond,
	}
}

type fakeSTT struct {
	mu       sync.Mutex
	text     string
	id       *int64
	err      error
	block    bool
	release  chan struct{}
	validErr error
	// validGate, when set, holds ValidateTranscription until closed.
	validGate chan struct{}
	requests  []api.SpeechRequest
	validated []string
	returned  int
}

func (f *fakeSTT) SpeechToText(ctx context.Context, req api.SpeechRequest) (*api.SpeechResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block, release, text, id, err := f.block, f.release, f.text, f.id, f.err
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.returned++
		f.mu.Unlock()
	}()
	if release != nil {
		<-release
	} else if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &api.SpeechResult{ID: id, Text: text}, nil
}

func (f *fakeSTT) ValidateTranscription(_ context.Context, id int64, text string) error {
	f.mu.Lock()
	gate := f.validGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, fmt.Sprintf("%d:%s", id, text))
	return f.validErr
}

func (f *fakeSTT) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordingSink struct {
	NopSink
	mu          sync.Mutex
	transitions []string
	notices     []Notice
	drafts      []Draft
	ticks       int
}

func (s *recordingSink) StateChanged(from, to State, reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, fmt.Sprintf("%s>%s:%s", from, to, reason))
}

func (s *recordingSink) Notice(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *recordingSink) Tick(time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
}

func (s *recordingSink) DraftReady(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append(s.drafts, d)
}

func (s *recordingSink) hasNotice(code NoticeCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

func (s *recordingSink) notice(code NoticeCode) (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notices {
		if n.Code == code {
			return n, true
		}
	}
	return Notice{}, false
}

type recordingHandoff struct {
	mu    sync.Mutex
	texts []string
	swaps []bool
}

func (h *recordingHandoff) HandOff(text string, swap bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts = append(h.texts, text)
	h.swaps = append(h.swaps, swap)
}

type harness struct {
	c       *Controller
	fake    *audio.FakeContext
	stt     *fakeSTT
	sink    *recordingSink
	handoff *recordingHandoff
}

func newHarness(t *testing.T, ctx audio.Context, fake *audio.FakeContext, timing Timing) *harness {
	t.Helper()
	h := &harness{
		fake:    fake,
		stt:     &fakeSTT{text: "  iorana  "},
		sink:    &recordingSink{},
		handoff: &recordingHandoff{},
	}
	shared := audio.NewShared(func() (audio.Context, error) { return ctx, nil })
	h.c = New(shared, h.stt, h.handoff, h.sink, Config{
		Timing:          timing,
		Container:       media.ContainerWAV,
		Language:        "rap_Latn",
		ASRModel:        api.DefaultASRModel,
		ASRModelVersion: api.DefaultASRModelVersion,
		TempDir:         t.TempDir(),
	})
	t.Cleanup(h.c.Close)
	return h
}

func newFakeHarness(t *testing.T, realtime bool, timing Timing) *harness {
	fake := audio.NewFakeContextPCM(sinePCM(5*time.Second), realtime)
	return newHarness(t, fake, fake, timing)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	eventually(t, "state "+string(want), func() bool { return c.State() == want })
}

func (h *harness) record(t *testing.T, d time.Duration) {
	t.Helper()
	if err := h.c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := h.c.State(); got != StateRecording {
		t.Fatalf("state after Start = %s, want recording", got)
	}
	time.Sleep(d)
	if err := h.c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRecordTranscribeConfirm(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	id := int64(7)
	h.stt.id = &id

	h.record(t, 300*time.Millisecond)
	waitState(t, h.c, StateReviewing)

	if n := h.fake.ActiveCaptures(); n != 0 {
		t.Errorf("active captures while reviewing = %d, want 0", n)
	}
	st := h.c.Snapshot()
	if st.Draft == nil || st.Draft.Text != "iorana" {
		t.Fatalf("draft = %+v, want trimmed text", st.Draft)
	}
	if st.Duration < 200*time.Millisecond || st.Duration > 2*time.Second {
		t.Errorf("duration = %v, want roughly the recorded span", st.Duration)
	}

	req := h.stt.requests[0]
	if req.Language != "rap_Latn" || req.Filename != "audio.wav" || req.ModelName != api.DefaultASRModel {
		t.Errorf("request = %s %s %s", req.Language, req.Filename, req.ModelName)
	}

	if err := h.c.Edit("iorana koe"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := h.c.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got := h.c.State(); got != StateIdle {
		t.Errorf("state after confirm = %s, want idle", got)
	}
	if len(h.stt.validated) != 1 || h.stt.validated[0] != "7:iorana koe" {
		t.Errorf("validated = %v", h.stt.validated)
	}
	if len(h.handoff.texts) != 1 || h.handoff.texts[0] != "iorana koe" || h.handoff.swaps[0] {
		t.Errorf("handoff = %v %v", h.handoff.texts, h.handoff.swaps)
	}
	if n := h.c.Resources().Outstanding(); n != 0 {
		t.Errorf("outstanding resources = %d", n)
	}

	h.c.Close()
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if len(h.sink.drafts) != 1 {
		t.Errorf("DraftReady called %d times", len(h.sink.drafts))
	}
	if h.sink.ticks == 0 {
		t.Error("no ticks while recording")
	}
	want := []string{
		"idle>ready:opened",
		"ready>recording:recording_started",
		"recording>processing:stopped",
		"processing>transcribing:processed",
		"transcribing>reviewing:transcribed",
		"reviewing>idle:confirmed",
	}
	if strings.Join(h.sink.transitions, " ") != strings.Join(want, " ") {
		t.Errorf("transitions = %v\nwant %v", h.sink.transitions, want)
	}
}

func TestQuickCancel(t *testing.T) {
	timing := testTiming()
	timing.Cooldown = time.Second
	h := newFakeHarness(t, true, timing)

	h.record(t, 0)
	if got := h.c.State(); got != StateReady {
		t.Fatalf("state = %s, want ready", got)
	}
	time.Sleep(50 * time.Millisecond)
	if n := h.stt.calls(); n != 0 {
		t.Errorf("transcription requests = %d, want 0", n)
	}
	if n := h.fake.ActiveCaptures(); n != 0 {
		t.Errorf("active captures = %d, want 0", n)
	}
	eventually(t, "too_short notice", func() bool { return h.sink.hasNotice(CodeTooShort) })

	if err := h.c.Start(context.Background()); !errors.Is(err, ErrCooldown) {
		t.Errorf("Start during cooldown = %v, want ErrCooldown", err)
	}
	eventually(t, "cooldown notice", func() bool { return h.sink.hasNotice(CodeCooldown) })
}

func TestStartRequiresReady(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	if err := h.c.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start from idle = %v, want ErrInvalidState", err)
	}
	if err := h.c.Stop(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Stop from idle = %v, want ErrInvalidState", err)
	}
	if err := h.c.Confirm(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Confirm from idle = %v, want ErrInvalidState", err)
	}
}

func TestAutoStopTruncates(t *testing.T) {
	timing := testTiming()
	timing.MaxDuration = time.Second
	// Not realtime: a second of wall clock captures far more audio.
	h := newFakeHarness(t, false, timing)

	if err := h.c.Open(); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitState(t, h.c, StateReviewing)

	st := h.c.Snapshot()
	if !st.Truncated {
		t.Error("Truncated = false")
	}
	if st.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", st.Duration)
	}
	eventually(t, "auto_stopped notice", func() bool { return h.sink.hasNotice(CodeAutoStopped) })
	eventually(t, "truncated notice", func() bool { return h.sink.hasNotice(CodeTruncated) })

	res, err := media.DefaultTools().Probe(context.Background(), media.Artifact{
		Data:      h.stt.requests[0].Audio,
		Container: media.ContainerWAV,
	}, time.Second)
	if err != nil {
		t.Fatalf("probe sent audio: %v", err)
	}
	if res.Duration != time.Second {
		t.Errorf("sent %v of audio, want 1s", res.Duration)
	}
}

func TestCancelDuringTranscription(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	h.stt.block = true

	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateTranscribing)

	h.c.Cancel()
	h.c.Cancel()
	if got := h.c.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	eventually(t, "request aborted", func() bool {
		h.stt.mu.Lock()
		defer h.stt.mu.Unlock()
		return h.stt.returned == 1
	})
	eventually(t, "cancel notice", func() bool { return h.sink.hasNotice(CodeTranscriptionCancelled) })
	if n, _ := h.sink.notice(CodeTranscriptionCancelled); n.Kind != NoticeCancelled {
		t.Errorf("notice kind = %s, want cancelled", n.Kind)
	}
	if h.c.Snapshot().Draft != nil {
		t.Error("draft kept after cancel")
	}
	if n := h.fake.ActiveCaptures(); n != 0 {
		t.Errorf("active captures = %d", n)
	}
}

func TestStaleTranscriptionIgnored(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	release := make(chan struct{})
	h.stt.release = release

	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateTranscribing)
	h.c.Cancel()
	close(release)

	eventually(t, "request returned", func() bool {
		h.stt.mu.Lock()
		defer h.stt.mu.Unlock()
		return h.stt.returned == 1
	})
	time.Sleep(20 * time.Millisecond)
	h.c.Close()

	if got := h.c.State(); got != StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if len(h.sink.drafts) != 0 {
		t.Errorf("late result produced a draft: %+v", h.sink.drafts)
	}
}

func TestTranscriptionUnauthorized(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	h.stt.err = &api.StatusError{Op: "speech_to_text", Code: 401}

	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateError)
	eventually(t, "failure notice", func() bool { return h.sink.hasNotice(CodeTranscriptionFailed) })
	n, _ := h.sink.notice(CodeTranscriptionFailed)
	if !strings.Contains(n.Message, "sign in") {
		t.Errorf("message = %q", n.Message)
	}
	if err := h.c.Open(); err != nil {
		t.Errorf("Open from error: %v", err)
	}
	if got := h.c.State(); got != StateReady {
		t.Errorf("state = %s, want ready", got)
	}
}

func TestValidationFailureStillHandsOff(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	id := int64(3)
	h.stt.id = &id
	h.stt.validErr = errors.New("boom")

	if err := h.c.SetSide(SideTarget); err != nil {
		t.Fatal(err)
	}
	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateReviewing)

	if err := h.c.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := h.c.Confirm(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Confirm = %v, want ErrInvalidState", err)
	}
	if len(h.stt.validated) != 1 {
		t.Errorf("validated %d times, want 1", len(h.stt.validated))
	}
	if len(h.handoff.texts) != 1 || !h.handoff.swaps[0] {
		t.Errorf("handoff = %v swap %v, want one swapped hand-off", h.handoff.texts, h.handoff.swaps)
	}
	eventually(t, "validation notice", func() bool { return h.sink.hasNotice(CodeValidationFailed) })
}

func TestDraftFrozenWhileConfirming(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	id := int64(9)
	h.stt.id = &id
	gate := make(chan struct{})
	h.stt.validGate = gate

	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateReviewing)
	if err := h.c.Edit("ia orana korua"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- h.c.Confirm(context.Background()) }()
	eventually(t, "confirm in progress", func() bool {
		h.c.mu.Lock()
		defer h.c.mu.Unlock()
		return h.c.confirming
	})
	if err := h.c.Edit("changed"); !errors.Is(err, ErrBusy) {
		t.Errorf("Edit during confirm = %v, want ErrBusy", err)
	}

	st := h.c.Snapshot()
	if st.State != StateReviewing || st.Draft == nil || st.Draft.Text != "ia orana korua" {
		t.Errorf("snapshot during confirm = %+v", st)
	}
	if err := h.c.Confirm(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Confirm = %v, want ErrBusy", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if h.c.Snapshot().Draft != nil {
		t.Error("draft kept after confirm")
	}
	if len(h.handoff.texts) != 1 || h.handoff.texts[0] != "ia orana korua" {
		t.Errorf("handoff = %v", h.handoff.texts)
	}
}

func TestConfirmWithoutRecordSkipsValidation(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateReviewing)
	if err := h.c.Confirm(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(h.stt.validated) != 0 {
		t.Errorf("validated = %v, want none", h.stt.validated)
	}
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name string
		file string
		mime string
		size int
		code NoticeCode
		want error
	}{
		{"text file", "notes.txt", "text/plain", 10, CodeUnsupportedType, media.ErrUnsupportedType},
		{"flac", "a.flac", "audio/flac", 10, CodeUnsupportedType, media.ErrUnsupportedType},
		{"too large", "a.wav", "audio/wav", 2*1024*1024 + 1, CodeTooLarge, media.ErrTooLarge},
		{"empty", "a.ogg", "audio/ogg", 0, CodeNoAudio, media.ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHarness(t, true, testTiming())
			h.c.cfg.MaxUploadMB = 2
			err := h.c.Upload(context.Background(), tt.file, tt.mime, make([]byte, tt.size))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := h.c.State(); got != StateIdle {
				t.Errorf("state = %s, want idle", got)
			}
			eventually(t, string(tt.code), func() bool { return h.sink.hasNotice(tt.code) })
			if n := h.stt.calls(); n != 0 {
				t.Errorf("requests = %d, want 0", n)
			}
		})
	}
}

func TestUploadLongFileIsTrimmed(t *testing.T) {
	timing := testTiming()
	timing.MaxDuration = media.MaxDuration
	h := newFakeHarness(t, true, timing)

	long, err := media.Encode(media.ContainerWAV, media.FromBytes(sinePCM(45*time.Second), audio.SampleRate))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.c.Upload(context.Background(), "long.wav", "audio/wav", long.Data); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	waitState(t, h.c, StateReviewing)

	st := h.c.Snapshot()
	if !st.Truncated || st.Duration != media.MaxDuration {
		t.Errorf("truncated=%v duration=%v, want true 30s", st.Truncated, st.Duration)
	}
	eventually(t, "truncated notice", func() bool { return h.sink.hasNotice(CodeTruncated) })
	if got := len(h.stt.requests[0].Audio); got >= len(long.Data) {
		t.Errorf("sent %d bytes, want fewer than %d", got, len(long.Data))
	}
}

// slowTools returns media tools whose ffprobe and ffmpeg hang for seconds.
func slowTools(t *testing.T) media.Tools {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script")
	}
	path := filepath.Join(t.TempDir(), "slow-tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 5\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return media.Tools{FFmpeg: path, FFprobe: path}
}

func TestUploadCancelledWhileMeasuring(t *testing.T) {
	timing := testTiming()
	timing.ProbeTimeout = 10 * time.Second
	h := newFakeHarness(t, true, timing)
	h.c.cfg.Tools = slowTools(t)

	ctx, cancel := context.WithCancel(context.Background())
	if err := h.c.Upload(ctx, "clip.ogg", "audio/ogg", make([]byte, 2048)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := h.c.State(); got != StateProcessing {
		t.Fatalf("state = %s, want processing", got)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	waitState(t, h.c, StateIdle)
	eventually(t, "cancelled notice", func() bool { return h.sink.hasNotice(CodeProcessingCancelled) })
	if n := h.stt.calls(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
	if err := h.c.Open(); err != nil {
		t.Errorf("Open after cancelled upload: %v", err)
	}
}

func TestPlayArtifactAndReRecord(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	clip, err := media.Encode(media.ContainerWAV, media.FromBytes(sinePCM(time.Second), audio.SampleRate))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.c.Upload(context.Background(), "clip.wav", "", clip.Data); err != nil {
		t.Fatal(err)
	}
	waitState(t, h.c, StateReviewing)

	path, err := h.c.PlayArtifact(context.Background())
	if err != nil {
		t.Fatalf("PlayArtifact: %v", err)
	}
	eventually(t, "playback file released", func() bool { return h.c.Resources().Outstanding() == 0 })
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("playback file still present: %v", err)
	}
	p, _ := h.fake.NewPlayer()
	played := p.(*audio.FakePlayer).Played()
	if len(played) != 1 || len(played[0]) != audio.SampleRate {
		t.Errorf("played %d clips", len(played))
	}

	if err := h.c.ReRecord(); err != nil {
		t.Fatalf("ReRecord: %v", err)
	}
	st := h.c.Snapshot()
	if st.State != StateReady || st.Draft != nil || st.Duration != 0 {
		t.Errorf("after re-record: %+v", st)
	}
}

func TestMicPermissionDenied(t *testing.T) {
	fake := audio.NewFakeContextPCM(sinePCM(time.Second), true)
	fake.StartErr = fmt.Errorf("open: %w", audio.ErrPermissionDenied)
	h := newHarness(t, fake, fake, testTiming())

	if err := h.c.Open(); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Start(context.Background()); !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("Start = %v", err)
	}
	if got := h.c.State(); got != StateError {
		t.Errorf("state = %s, want error", got)
	}
	eventually(t, "permission notice", func() bool { return h.sink.hasNotice(CodePermissionDenied) })
}

func TestUnsupportedAudio(t *testing.T) {
	h := &harness{stt: &fakeSTT{}, sink: &recordingSink{}}
	shared := audio.NewShared(func() (audio.Context, error) { return nil, errors.New("no backend") })
	h.c = New(shared, h.stt, nil, h.sink, Config{Timing: testTiming()})
	t.Cleanup(h.c.Close)

	h.c.Open()
	if err := h.c.Start(context.Background()); !errors.Is(err, audio.ErrUnsupported) {
		t.Fatalf("Start = %v, want ErrUnsupported", err)
	}
	eventually(t, "unsupported notice", func() bool { return h.sink.hasNotice(CodeUnsupported) })
}

func TestNoAudioCaptured(t *testing.T) {
	fake := audio.NewFakeContextPCM(sinePCM(time.Second), true)
	fake.MuteFor = 10 * time.Second
	timing := testTiming()
	timing.UnmuteTimeout = 20 * time.Millisecond
	h := newHarness(t, fake, fake, timing)

	h.record(t, 200*time.Millisecond)
	waitState(t, h.c, StateIdle)
	eventually(t, "no_audio notice", func() bool { return h.sink.hasNotice(CodeNoAudio) })
	if n := h.stt.calls(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestBusyWhileStarting(t *testing.T) {
	fake := audio.NewFakeContextPCM(sinePCM(time.Second), true)
	fake.MuteFor = 10 * time.Second
	timing := testTiming()
	timing.UnmuteTimeout = 10 * time.Second
	h := newHarness(t, fake, fake, timing)
	h.c.Open()

	errc := make(chan error, 1)
	go func() { errc <- h.c.Start(context.Background()) }()
	eventually(t, "capture started", func() bool { return fake.ActiveCaptures() == 1 })

	if err := h.c.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start = %v, want ErrBusy", err)
	}
	if err := h.c.Upload(context.Background(), "a.wav", "audio/wav", []byte("x")); !errors.Is(err, ErrBusy) {
		t.Errorf("Upload while starting = %v, want ErrBusy", err)
	}

	h.c.Cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("first Start = %v, want ErrCancelled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}
	if n := fake.ActiveCaptures(); n != 0 {
		t.Errorf("active captures = %d", n)
	}
}

// stuckContext hands out captures whose Stop blocks until released.
type stuckContext struct {
	*audio.FakeContext
	release chan struct{}
}

type stuckCapture struct {
	audio.CaptureDevice
	release chan struct{}
}

func (s *stuckContext) NewCapture(d *audio.DeviceInfo, cfg audio.CaptureConfig) (audio.CaptureDevice, error) {
	inner, err := s.FakeContext.NewCapture(d, cfg)
	if err != nil {
		return nil, err
	}
	return &stuckCapture{CaptureDevice: inner, release: s.release}, nil
}

func (s *stuckCapture) Stop() {
	<-s.release
	s.CaptureDevice.Stop()
}

func TestSafeguardResetsStalledStop(t *testing.T) {
	fake := audio.NewFakeContextPCM(sinePCM(5*time.Second), true)
	stuck := &stuckContext{FakeContext: fake, release: make(chan struct{})}
	timing := testTiming()
	timing.Safeguard = 150 * time.Millisecond
	h := newHarness(t, stuck, fake, timing)

	h.record(t, 200*time.Millisecond)
	if got := h.c.State(); got != StateProcessing {
		t.Fatalf("state = %s, want processing", got)
	}
	waitState(t, h.c, StateIdle)
	eventually(t, "stalled notice", func() bool { return h.sink.hasNotice(CodeStalled) })

	close(stuck.release)
	eventually(t, "capture released", func() bool { return fake.ActiveCaptures() == 0 })
	time.Sleep(50 * time.Millisecond)
	if got := h.c.State(); got != StateIdle {
		t.Errorf("late stop moved state to %s", got)
	}
	if n := h.stt.calls(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestCloseReleasesMicrophone(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	if err := h.c.Open(); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.c.Close()
	if n := h.fake.ActiveCaptures(); n != 0 {
		t.Errorf("active captures = %d", n)
	}
	if err := h.c.Open(); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close = %v, want ErrClosed", err)
	}
}

func TestSetSideRejectsUnknown(t *testing.T) {
	h := newFakeHarness(t, true, testTiming())
	if err := h.c.SetSide("middle"); err == nil {
		t.Error("SetSide accepted unknown side")
	}
}

func TestSilentMicrophoneWarns(t *testing.T) {
	timing := testTiming()
	timing.EnergyThreshold = 0.01
	timing.EnergyWindow = 40 * time.Millisecond
	timing.EnergyStep = 20 * time.Millisecond
	timing.SilenceWarn = 100 * time.Millisecond
	fake := audio.NewFakeContextPCM(make([]byte, 3*audio.SampleRate*2), true)
	h := newHarness(t, fake, fake, timing)

	if err := h.c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, "no_voice notice", func() bool { return h.sink.hasNotice(CodeNoVoice) })
	if got := h.c.State(); got != StateRecording {
		t.Errorf("state = %s, want recording to continue", got)
	}
	h.c.Cancel()
	waitState(t, h.c, StateIdle)
}
