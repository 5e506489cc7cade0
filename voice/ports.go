package voice

import (
	"context"
	"time"

	"traductor/api"
)

// Transcriber is the remote speech-to-text service.
type Transcriber interface {
	SpeechToText(ctx context.Context, req api.SpeechRequest) (*api.SpeechResult, error)
	ValidateTranscription(ctx context.Context, id int64, text string) error
}

// Handoff receives confirmed text. swap asks for the source and target
// languages to be exchanged first.
type Handoff interface {
	HandOff(text string, swap bool)
}

// EventSink is notified of controller activity. Calls are made from a
// single goroutine in the order the events happened.
type EventSink interface {
	StateChanged(from, to State, reason Reason)
	Notice(n Notice)
	Level(rms float64)
	Tick(elapsed time.Duration)
	DraftReady(d Draft)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) StateChanged(State, State, Reason) {}
func (NopSink) Notice(Notice)                     {}
func (NopSink) Level(float64)                     {}
func (NopSink) Tick(time.Duration)                {}
func (NopSink) DraftReady(Draft)                  {}
