package lang

import "slices"

// Capabilities lists the language prefixes with speech synthesis and
// speech recognition.
type Capabilities struct {
	Speech        []string
	Transcription []string
}

// DefaultCapabilities enables both features for Rapa Nui only.
func DefaultCapabilities(v Variant) Capabilities {
	if v != VariantRapaNui {
		return Capabilities{}
	}
	return Capabilities{Speech: []string{"rap"}, Transcription: []string{"rap"}}
}

// SupportsSpeech reports whether text-to-speech is offered for code.
func (c Capabilities) SupportsSpeech(code string) bool {
	return code != "" && slices.Contains(c.Speech, Prefix(code))
}

// SupportsTranscription reports whether speech-to-text is offered for code.
func (c Capabilities) SupportsTranscription(code string) bool {
	return code != "" && slices.Contains(c.Transcription, Prefix(code))
}

// SpeechEnabled reports whether any language has text-to-speech.
func (c Capabilities) SpeechEnabled() bool { return len(c.Speech) > 0 }

// TranscriptionEnabled reports whether any language has speech-to-text.
func (c Capabilities) TranscriptionEnabled() bool { return len(c.Transcription) > 0 }

// Restricted reports whether a feature is unavailable to the current user:
// either it is disabled, or it needs a sign-in the user does not have.
func Restricted(enabled, requiresAuth, signedIn bool) bool {
	return !enabled || (requiresAuth && !signedIn)
}
