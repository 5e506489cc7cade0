package voice

import (
	"errors"
	"time"
)

// State is the controller's single authoritative status.
type State string

const (
	StateIdle         State = "idle"
	StateReady        State = "ready"
	StateRecording    State = "recording"
	StateProcessing   State = "processing"
	StateTranscribing State = "transcribing"
	StateReviewing    State = "reviewing"
	StateError        State = "error"
)

// Reason explains a state transition.
type Reason string

const (
	ReasonOpened                 Reason = "opened"
	ReasonRecordingStarted       Reason = "recording_started"
	ReasonStopped                Reason = "stopped"
	ReasonAutoStopped            Reason = "auto_stopped"
	ReasonQuickCancel            Reason = "quick_cancel"
	ReasonNoAudio                Reason = "no_audio"
	ReasonUploaded               Reason = "uploaded"
	ReasonInvalidUpload          Reason = "invalid_upload"
	ReasonProcessed              Reason = "processed"
	ReasonProcessingFailed       Reason = "processing_failed"
	ReasonTranscribed            Reason = "transcribed"
	ReasonTranscriptionFailed    Reason = "transcription_failed"
	ReasonTranscriptionCancelled Reason = "transcription_cancelled"
	ReasonReRecord               Reason = "re_record"
	ReasonConfirmed              Reason = "confirmed"
	ReasonCancelled              Reason = "cancelled"
	ReasonSafeguard              Reason = "safeguard"
	ReasonMicUnavailable         Reason = "mic_unavailable"
	ReasonClosed                 Reason = "closed"
)

// Side is the language slot the dictated speech belongs to.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

func (s Side) Valid() bool { return s == SideSource || s == SideTarget }

// Draft is the reviewed transcript.
type Draft struct {
	Text string
	// Transcript is the text as returned by the server.
	Transcript string
	Side       Side
	// RecordID backs validation; nil when the server stored no record.
	RecordID *int64
}

type NoticeKind string

const (
	NoticeInfo      NoticeKind = "info"
	NoticeWarning   NoticeKind = "warning"
	NoticeError     NoticeKind = "error"
	NoticeCancelled NoticeKind = "cancelled"
)

type NoticeCode string

const (
	CodeUnsupported            NoticeCode = "unsupported"
	CodePermissionDenied       NoticeCode = "permission_denied"
	CodeTooShort               NoticeCode = "too_short"
	CodeNoAudio                NoticeCode = "no_audio"
	CodeTooLarge               NoticeCode = "too_large"
	CodeUnsupportedType        NoticeCode = "unsupported_type"
	CodeProbeFailed            NoticeCode = "probe_failed"
	CodeTruncated              NoticeCode = "truncated"
	CodeAutoStopped            NoticeCode = "auto_stopped"
	CodeTranscriptionFailed    NoticeCode = "transcription_failed"
	CodeTranscriptionCancelled NoticeCode = "transcription_cancelled"
	CodeProcessingCancelled    NoticeCode = "processing_cancelled"
	CodeValidationFailed       NoticeCode = "validation_failed"
	CodeStillWorking           NoticeCode = "still_working"
	CodeCooldown               NoticeCode = "cooldown"
	CodeBusy                   NoticeCode = "busy"
	CodeStalled                NoticeCode = "stalled"
	CodeNoVoice                NoticeCode = "no_voice"
)

// Notice is a user-facing message, the terminal equivalent of a toast.
type Notice struct {
	Kind    NoticeKind
	Code    NoticeCode
	Message string
}

var (
	ErrInvalidState = errors.New("operation not allowed in current state")
	ErrBusy         = errors.New("a recording is already starting")
	ErrCooldown     = errors.New("microphone is settling, try again")
	ErrCancelled    = errors.New("recording cancelled")
	ErrClosed       = errors.New("controller closed")
)

// Timing holds every bound of the state machine.
type Timing struct {
	UnmuteTimeout   time.Duration
	EnergyWindow    time.Duration
	EnergyStep      time.Duration
	EnergyThreshold float64
	PreRoll         time.Duration
	FlushInterval   time.Duration
	MaxDuration     time.Duration
	QuickCancel     time.Duration
	Settle          time.Duration
	Cooldown        time.Duration
	Safeguard       time.Duration
	ProbeTimeout    time.Duration
	SlowNotice      time.Duration
	TickInterval    time.Duration
	// SilenceWarn is how long recording may hear nothing before a
	// warning. Zero disables it.
	SilenceWarn time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		UnmuteTimeout:   1500 * time.Millisecond,
		EnergyWindow:    800 * time.Millisecond,
		EnergyStep:      80 * time.Millisecond,
		EnergyThreshold: 0.008,
		PreRoll:         150 * time.Millisecond,
		FlushInterval:   200 * time.Millisecond,
		MaxDuration:     30 * time.Second,
		QuickCancel:     500 * time.Millisecond,
		Settle:          120 * time.Millisecond,
		Cooldown:        700 * time.Millisecond,
		Safeguard:       4 * time.Second,
		ProbeTimeout:    2 * time.Second,
		SlowNotice:      5 * time.Second,
		TickInterval:    100 * time.Millisecond,
		SilenceWarn:     5 * time.Second,
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State     State
	Side      Side
	Draft     *Draft
	Duration  time.Duration
	Truncated bool
	Elapsed   time.Duration
}
