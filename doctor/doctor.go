// Package doctor runs system diagnostics: media tools, API, microphone with
// transcription, and the clipboard.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"traductor/api"
	"traductor/audio"
	"traductor/clipboard"
	"traductor/lang"
	"traductor/media"
)

// Client is the part of the API the checks call.
type Client interface {
	Languages(ctx context.Context, f api.LanguageFilter) ([]lang.Language, error)
	SpeechToText(ctx context.Context, req api.SpeechRequest) (*api.SpeechResult, error)
}

type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	}
	return "FAIL"
}

type Options struct {
	Client Client
	Tools  media.Tools
	Audio  *audio.Shared
	Device *audio.DeviceInfo
	// Record is how long the microphone check listens. Zero skips it.
	Record          time.Duration
	Language        string
	ASRModel        string
	ASRModelVersion string
	// Clipboard enables the clipboard round trip, which overwrites its
	// contents.
	Clipboard bool
}

type check struct {
	name string
	run  func(ctx context.Context, o Options) (Status, string)
}

var checks = []check{
	{"Media tools", checkTools},
	{"Translator API", checkAPI},
	{"Microphone and transcription (speak now)", checkMic},
	{"Clipboard", checkClipboard},
}

// Run executes every check, printing results to out, and returns an exit
// code (0=no failures, 1=any fail).
func Run(ctx context.Context, out io.Writer, o Options) int {
	fmt.Fprintln(out, "traductor doctor - system diagnostics")
	fmt.Fprintln(out, "=====================================")

	failed := false
	for i, c := range checks {
		fmt.Fprintf(out, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		status, detail := c.run(ctx, o)
		fmt.Fprintf(out, "  %s: %s\n", status, detail)
		if status == Fail {
			failed = true
		}
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nInterrupted")
			return 1
		}
	}

	fmt.Fprintln(out)
	if failed {
		fmt.Fprintln(out, "Some checks failed. See details above.")
		return 1
	}
	fmt.Fprintln(out, "All checks passed!")
	return 0
}

// checkTools looks for ffmpeg and ffprobe. WAV and FLAC work without them,
// so a missing tool is only a warning.
func checkTools(_ context.Context, o Options) (Status, string) {
	var missing, found []string
	for _, bin := range []string{o.Tools.FFmpeg, o.Tools.FFprobe} {
		if bin == "" {
			continue
		}
		if path, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		} else {
			found = append(found, path)
		}
	}
	if len(missing) > 0 {
		return Warn, fmt.Sprintf("not found: %s (only wav and flac uploads will work)", strings.Join(missing, ", "))
	}
	return Pass, strings.Join(found, ", ")
}

func checkAPI(ctx context.Context, o Options) (Status, string) {
	if o.Client == nil {
		return Fail, "no API client configured"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	langs, err := o.Client.Languages(ctx, api.LanguageFilter{})
	if err != nil {
		return Fail, fmt.Sprintf("cannot reach the API: %v", err)
	}
	return Pass, fmt.Sprintf("%d languages available", len(langs))
}

func checkMic(ctx context.Context, o Options) (Status, string) {
	if o.Record <= 0 {
		return Warn, "skipped"
	}
	shared := o.Audio
	if shared == nil {
		shared = audio.Default()
	}
	actx, err := shared.Resume()
	if err != nil {
		return Fail, fmt.Sprintf("cannot connect to audio: %v", err)
	}
	defer shared.Suspend()

	cfg := audio.DefaultCaptureConfig()
	pcm, err := recordAudio(ctx, actx, o.Device, cfg, o.Record)
	if err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			return Fail, "microphone permission denied"
		}
		return Fail, fmt.Sprintf("recording error: %v", err)
	}
	if len(pcm) == 0 {
		return Fail, "no audio captured"
	}
	level := media.RMS(pcm)

	a, err := media.Encode(media.ContainerWAV, media.FromBytes(pcm, int(cfg.SampleRate)))
	if err != nil {
		return Fail, fmt.Sprintf("encoding: %v", err)
	}
	if o.Client == nil {
		return Warn, fmt.Sprintf("recorded %.1f KB (level %.3f), no API to transcribe", float64(a.Size())/1024, level)
	}
	res, err := o.Client.SpeechToText(ctx, api.SpeechRequest{
		Audio:        a.Data,
		Filename:     a.Name,
		MIME:         a.MIME,
		Language:     o.Language,
		ModelName:    o.ASRModel,
		ModelVersion: o.ASRModelVersion,
	})
	if err != nil {
		return Fail, fmt.Sprintf("transcription error: %v", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return Warn, fmt.Sprintf("no speech detected (level %.3f)", level)
	}
	return Pass, fmt.Sprintf("heard %q (level %.3f)", text, level)
}

func recordAudio(ctx context.Context, actx audio.Context, device *audio.DeviceInfo, cfg audio.CaptureConfig, d time.Duration) ([]byte, error) {
	var (
		pcmBuf  []byte
		bufMu   sync.Mutex
		stopped bool
	)

	capture, err := actx.NewCapture(device, cfg)
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if !stopped {
			pcmBuf = append(pcmBuf, data...)
		}
	})
	if err := capture.Start(); err != nil {
		return nil, err
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	capture.Stop()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()
	return raw, ctx.Err()
}

func checkClipboard(_ context.Context, o Options) (Status, string) {
	if !o.Clipboard {
		return Warn, "skipped"
	}
	if clipboard.Unsupported() {
		return Warn, "no clipboard utility found (install xclip, xsel or wl-clipboard)"
	}
	const sentinel = "traductor-doctor-test"
	if err := clipboard.Copy(sentinel); err != nil {
		return Fail, fmt.Sprintf("copy failed: %v", err)
	}
	got, err := clipboard.Read()
	if err != nil {
		return Fail, fmt.Sprintf("read failed: %v", err)
	}
	if got != sentinel {
		return Fail, fmt.Sprintf("read back %q, want %q", got, sentinel)
	}
	return Pass, "copy and read back verified"
}
