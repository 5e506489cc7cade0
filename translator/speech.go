package translator

import (
	"context"
	"fmt"
	"strings"

	"traductor/api"
	"traductor/lang"
	"traductor/voice"
)

// SpeechAvailable reports whether the side's language has speech and the
// user may use it.
func (t *Translator) SpeechAvailable(side voice.Side) bool {
	_, code := t.sideText(side)
	return t.opts.Capabilities.SupportsSpeech(code) && !t.speechRestricted()
}

func (t *Translator) speechRestricted() bool {
	return lang.Restricted(t.opts.Capabilities.SpeechEnabled(), t.opts.Auth.Speech, t.client.SignedIn())
}

func (t *Translator) sideText(side voice.Side) (text, code string) {
	st := t.State()
	if side == voice.SideTarget {
		return st.DstText, st.DstLang.Code
	}
	return st.SrcText, st.SrcLang.Code
}

// Speak synthesizes the text on one side and plays it.
func (t *Translator) Speak(ctx context.Context, side voice.Side) error {
	text, code := t.sideText(side)
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNothingToDo
	}
	if !t.opts.Capabilities.SupportsSpeech(code) {
		t.notice(CodeNoSpeech, fmt.Sprintf("Speech is not available for %s", code))
		return ErrNoSpeech
	}
	if t.speechRestricted() {
		t.notice(CodeRestricted, "Sign in to listen to translations")
		return ErrRestricted
	}

	res, err := t.client.TextToSpeech(ctx, api.TTSRequest{
		Text:         text,
		Language:     code,
		ModelName:    t.opts.TTSModel,
		ModelVersion: t.opts.TTSModelVersion,
	})
	if err != nil {
		t.reportError(err, CodeSpeakFailed, "Could not synthesize speech")
		return err
	}
	if len(res.Waveform) == 0 {
		t.notice(CodeSpeakFailed, "The server returned no audio")
		return fmt.Errorf("empty waveform for %s", code)
	}

	actx, err := t.opts.Audio.Resume()
	if err != nil {
		t.notice(CodeSpeakFailed, "Audio playback is not available")
		return err
	}
	defer t.opts.Audio.Suspend()
	player, err := actx.NewPlayer()
	if err != nil {
		return fmt.Errorf("opening player: %w", err)
	}
	stop := context.AfterFunc(ctx, player.Close)
	defer stop()
	return player.Play(res.Waveform, api.TTSSampleRate)
}
