package log

import (
	"fmt"
	"time"
)

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func SessionStart(variant, apiURL, container string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("variant", variant).
		Str("api", apiURL).
		Str("container", container).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

// StateChange records a voice controller transition.
func StateChange(session, from, to, reason string) {
	if !ready() {
		return
	}
	ev := diagLog.Info().
		Str("session", session).
		Str("from", from).
		Str("to", to)
	if reason != "" {
		ev = ev.Str("reason", reason)
	}
	ev.Msg("state")
}

// Notice records a message shown to the user.
func Notice(kind, code, msg string) {
	if !ready() {
		return
	}
	diagLog.Info().Str("kind", kind).Str("code", code).Msg("notice: " + msg)
}

type Recording struct {
	Session     string
	Container   string
	AudioS      float64
	SizeKB      float64
	Truncated   bool
	ProbeMethod string
	ProcessMs   float64
}

func RecordingMetrics(r Recording) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("session", r.Session).
		Str("container", r.Container).
		Float64("audio_s", r.AudioS).
		Float64("size_kb", r.SizeKB).
		Bool("truncated", r.Truncated).
		Str("probe", r.ProbeMethod).
		Float64("process_ms", r.ProcessMs).
		Msg("recording")
}

// Transcription appends a reviewed transcript to the transcript log.
func Transcription(side, text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady || transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, side, text)
	transcribeFile.WriteString(line)
}

func TranslationMetrics(srcLang, dstLang, model string, words int, total time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("src", srcLang).
		Str("dst", dstLang).
		Str("model", model).
		Int("words", words).
		Float64("total_ms", ms(total)).
		Bool("slow", total > 5*time.Second).
		Msg("translation")
}

type Request struct {
	Op         string
	Method     string
	Path       string
	Status     int
	DNS        time.Duration
	TLS        time.Duration
	TTFB       time.Duration
	Total      time.Duration
	ConnReused bool
	TLSProto   string
	Err        error
}

func RequestMetrics(r Request) {
	if !ready() {
		return
	}
	connStatus := "new"
	if r.ConnReused {
		connStatus = "reused"
	}
	ev := diagLog.Info()
	if r.Err != nil {
		ev = diagLog.Warn().Err(r.Err)
	}
	ev = ev.Str("op", r.Op).
		Str("method", r.Method).
		Str("path", r.Path).
		Int("status", r.Status).
		Str("conn", connStatus)
	if r.TLSProto != "" {
		ev = ev.Str("tls_proto", r.TLSProto)
	}
	ev.Float64("dns_ms", ms(r.DNS)).
		Float64("tls_ms", ms(r.TLS)).
		Float64("ttfb_ms", ms(r.TTFB)).
		Float64("total_ms", ms(r.Total)).
		Msg("request")
}
