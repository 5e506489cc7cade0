package voice

import "time"

const (
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type silenceEvent int

const (
	silenceNone  silenceEvent = iota
	silenceWarn               // no voice detected
	silenceClear              // speech resumed after warning
)

// silenceMonitor tracks which recent ticks carried speech and reports when
// the window goes quiet.
type silenceMonitor struct {
	windowSz int
	ticks    int
	window   []bool
	warned   bool
}

func newSilenceMonitor(warnAfter, tick time.Duration) *silenceMonitor {
	n := 1
	if tick > 0 && warnAfter > tick {
		n = int(warnAfter / tick)
	}
	return &silenceMonitor{windowSz: n, window: make([]bool, n)}
}

func (m *silenceMonitor) ratio() float64 {
	n := min(m.ticks, m.windowSz)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) silenceEvent {
	m.window[m.ticks%m.windowSz] = hasSpeech
	m.ticks++
	if m.ticks < m.windowSz {
		return silenceNone
	}

	r := m.ratio()
	if !m.warned && r < speechMinRatio {
		m.warned = true
		return silenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return silenceClear
	}
	return silenceNone
}
