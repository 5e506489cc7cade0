package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"traductor/api"
	"traductor/audio"
	"traductor/config"
	"traductor/lang"
	"traductor/translator"
	"traductor/voice"
)

var errTranscriptionRestricted = errors.New("sign in to use voice transcription")

type appOptions struct {
	Device *audio.DeviceInfo
	Cues   bool
}

// app joins the translator with the voice controller: confirmed dictations
// become the text to translate.
type app struct {
	cfg    *config.Config
	client *api.Client
	caps   lang.Capabilities
	events *eventQueue
	text   *translator.Translator
	voice  *voice.Controller

	confirmed atomic.Int64
}

func newApp(cfg *config.Config, client *api.Client, src, dst lang.Language, q *eventQueue, opts appOptions) *app {
	a := &app{cfg: cfg, client: client, caps: cfg.Capabilities(), events: q}

	a.text = translator.New(client, textEvents{q}, src, dst, translator.Options{
		MaxWords: cfg.MaxWords,
		Auth: translator.Auth{
			Translation: cfg.TranslationRequiresAuth,
			Speech:      cfg.TTSRequiresAuth,
		},
		Capabilities:    a.caps,
		TTSModel:        cfg.TTSModel,
		TTSModelVersion: cfg.TTSModelVersion,
		Audio:           audio.Default(),
	})

	a.voice = voice.New(audio.Default(), client, a, voiceEvents{q}, voice.Config{
		Timing:          voice.DefaultTiming(),
		Capture:         audio.DefaultCaptureConfig(),
		Device:          opts.Device,
		Container:       cfg.MediaContainer(),
		Language:        src.Code,
		ASRModel:        cfg.ASRModel,
		ASRModelVersion: cfg.ASRModelVersion,
		MaxUploadMB:     cfg.MaxAudioMB,
		Tools:           cfg.Tools(),
		Cues:            opts.Cues,
		BlankDraft:      !cfg.AutofillTranscript,
	})
	return a
}

// HandOff counts confirmed dictations and passes them to the translator.
func (a *app) HandOff(text string, swap bool) {
	a.confirmed.Add(1)
	a.text.HandOff(text, swap)
}

func (a *app) Confirmed() int { return int(a.confirmed.Load()) }

func (a *app) notify(format string, args ...any) {
	a.events.post(appNoticeMsg{Text: fmt.Sprintf(format, args...)})
}

// sideLanguage is the language a dictation on the current side is in.
func (a *app) sideLanguage() lang.Language {
	st := a.text.State()
	if a.voice.Snapshot().Side == voice.SideTarget {
		return st.DstLang
	}
	return st.SrcLang
}

// voiceAllowed checks the side's language has transcription and that the
// user may use it.
func (a *app) voiceAllowed() (lang.Language, error) {
	l := a.sideLanguage()
	if !a.caps.SupportsTranscription(l.Code) {
		a.notify("Voice input is not available for %s", l)
		return l, fmt.Errorf("no transcription for %s", l.Code)
	}
	if lang.Restricted(a.caps.TranscriptionEnabled(), a.cfg.ASRRequiresAuth, a.client.SignedIn()) {
		a.notify("Please sign in to use voice transcription")
		return l, errTranscriptionRestricted
	}
	return l, nil
}

// Record opens the dialog if needed and starts recording, or stops a
// recording in progress.
func (a *app) Record(ctx context.Context) error {
	switch a.voice.State() {
	case voice.StateRecording:
		return a.voice.Stop()
	case voice.StateIdle, voice.StateError:
		if err := a.voice.Open(); err != nil {
			return err
		}
	}
	l, err := a.voiceAllowed()
	if err != nil {
		return err
	}
	a.voice.SetLanguage(l.Code)
	return a.voice.Start(ctx)
}

// Upload sends an audio file through the same review flow as a recording.
func (a *app) Upload(ctx context.Context, path string) error {
	l, err := a.voiceAllowed()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	a.voice.SetLanguage(l.Code)
	return a.voice.Upload(ctx, filepath.Base(path), "", data)
}

// ToggleSide switches which language the next dictation is in.
func (a *app) ToggleSide() voice.Side {
	side := voice.SideTarget
	if a.voice.Snapshot().Side == voice.SideTarget {
		side = voice.SideSource
	}
	_ = a.voice.SetSide(side)
	return side
}

func (a *app) Close() {
	a.voice.Close()
	a.text.Close()
}
