package main

import (
	"fmt"
	"sync"
	"time"

	"traductor/translator"
	"traductor/voice"
)

// Messages delivered to the display layer. The TUI receives them as
// tea.Msg values; test mode prints them.
type (
	voiceStateMsg struct {
		From, To voice.State
		Reason   voice.Reason
	}
	voiceNoticeMsg struct{ voice.Notice }
	levelMsg       struct{ RMS float64 }
	elapsedMsg     struct{ Elapsed time.Duration }
	draftMsg       struct{ voice.Draft }
	textNoticeMsg  struct{ translator.Notice }
	textStateMsg   struct{ translator.State }
	appNoticeMsg   struct{ Text string }
)

// eventQueue decouples producers from the display. post never blocks, and
// messages reach the consumer in order from a single goroutine.
type eventQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []any
	started bool
}

func (q *eventQueue) post(msg any) {
	q.mu.Lock()
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mu)
	}
	q.pending = append(q.pending, msg)
	q.cond.Signal()
	q.mu.Unlock()
}

// attach starts delivering to fn, including anything posted before.
func (q *eventQueue) attach(fn func(any)) {
	q.mu.Lock()
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mu)
	}
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		for {
			q.mu.Lock()
			for len(q.pending) == 0 {
				q.cond.Wait()
			}
			msg := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
			fn(msg)
		}
	}()
}

type voiceEvents struct{ q *eventQueue }

func (e voiceEvents) StateChanged(from, to voice.State, reason voice.Reason) {
	e.q.post(voiceStateMsg{From: from, To: to, Reason: reason})
}
func (e voiceEvents) Notice(n voice.Notice)      { e.q.post(voiceNoticeMsg{n}) }
func (e voiceEvents) Level(rms float64)          { e.q.post(levelMsg{rms}) }
func (e voiceEvents) Tick(elapsed time.Duration) { e.q.post(elapsedMsg{elapsed}) }
func (e voiceEvents) DraftReady(d voice.Draft)   { e.q.post(draftMsg{d}) }

type textEvents struct{ q *eventQueue }

func (e textEvents) Notice(n translator.Notice) { e.q.post(textNoticeMsg{n}) }
func (e textEvents) Updated(s translator.State) { e.q.post(textStateMsg{s}) }

var lastPrinted string

// printEvent writes one line per event for headless runs. Level and tick
// events are too chatty and are dropped.
func printEvent(msg any) {
	switch m := msg.(type) {
	case voiceStateMsg:
		fmt.Printf("STATE %s -> %s (%s)\n", m.From, m.To, m.Reason)
	case voiceNoticeMsg:
		fmt.Printf("NOTICE %s %s: %s\n", m.Kind, m.Code, m.Message)
	case draftMsg:
		fmt.Printf("DRAFT %s: %s\n", m.Side, m.Text)
	case textNoticeMsg:
		fmt.Printf("TRANSLATOR %s: %s\n", m.Code, m.Message)
	case textStateMsg:
		if m.Loading || m.DstText == "" || m.DstText == lastPrinted {
			return
		}
		lastPrinted = m.DstText
		fmt.Printf("TRANSLATION %s -> %s: %s\n", m.SrcLang.Code, m.DstLang.Code, m.DstText)
	case appNoticeMsg:
		fmt.Printf("INFO %s\n", m.Text)
	}
}
