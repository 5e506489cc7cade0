package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Tools locates the external ffmpeg binaries used for containers that
// cannot be handled in-process.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// DefaultTools looks both binaries up on PATH.
func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// decodeFFmpeg converts any container ffmpeg understands to mono 16 kHz.
func (t Tools) decodeFFmpeg(ctx context.Context, data []byte) (PCM, error) {
	if t.FFmpeg == "" {
		return PCM{}, fmt.Errorf("%w: no ffmpeg configured", ErrUnsupportedType)
	}
	cmd := exec.CommandContext(ctx, t.FFmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ac", "1", "-ar", "16000",
		"-f", "s16le", "pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return PCM{}, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return FromBytes(stdout.Bytes(), 16000), nil
}

// probeFFprobe reads the container-reported duration.
func (t Tools) probeFFprobe(ctx context.Context, data []byte) (time.Duration, error) {
	if t.FFprobe == "" {
		return 0, fmt.Errorf("%w: no ffprobe configured", ErrProbe)
	}
	cmd := exec.CommandContext(ctx, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseSeconds(strings.TrimSpace(string(out)))
}

func parseSeconds(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", ErrProbe, s)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrProbe, s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
