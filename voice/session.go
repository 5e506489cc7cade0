package voice

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"traductor/audio"
	"traductor/media"
)

// session is one microphone acquisition. The capture callback runs on the
// backend's goroutine, so everything it touches is atomic or locked here.
type session struct {
	id      string
	capture audio.CaptureDevice
	rec     recorder
	onLevel func(float64)

	startedAt time.Time

	unmuted    chan struct{}
	unmuteOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
	ended      chan struct{}
	endOnce    sync.Once

	recording atomic.Bool
	released  atomic.Bool

	energyMu  sync.Mutex
	energySum float64
	energyN   int
	peak      float64
}

func newSession(capture audio.CaptureDevice, onLevel func(float64)) *session {
	return &session{
		id:      uuid.NewString(),
		capture: capture,
		onLevel: onLevel,
		unmuted: make(chan struct{}),
		done:    make(chan struct{}),
		ended:   make(chan struct{}),
	}
}

func (s *session) onAudio(data []byte, _ uint32) {
	if len(data) == 0 {
		return
	}
	s.unmuteOnce.Do(func() { close(s.unmuted) })
	rms := media.RMS(data)
	if s.recording.Load() {
		s.rec.write(data)
		s.energyMu.Lock()
		s.peak = max(s.peak, rms)
		s.energyMu.Unlock()
		if s.onLevel != nil {
			s.onLevel(rms)
		}
		return
	}
	s.energyMu.Lock()
	s.energySum += rms
	s.energyN++
	s.energyMu.Unlock()
}

// takeEnergy returns the mean level since the previous call.
func (s *session) takeEnergy() (float64, bool) {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	if s.energyN == 0 {
		return 0, false
	}
	mean := s.energySum / float64(s.energyN)
	s.energySum, s.energyN = 0, 0
	return mean, true
}

// takePeak returns the loudest recorded chunk since the previous call.
func (s *session) takePeak() float64 {
	s.energyMu.Lock()
	defer s.energyMu.Unlock()
	p := s.peak
	s.peak = 0
	return p
}

func (s *session) begin(flush time.Duration) {
	s.startedAt = time.Now()
	s.rec.start(flush)
	s.recording.Store(true)
}

// endRecording stops accepting samples and ends the tick loop.
func (s *session) endRecording() {
	s.recording.Store(false)
	s.endOnce.Do(func() { close(s.ended) })
}

// abort wakes every wait on the session.
func (s *session) abort() {
	s.endRecording()
	s.doneOnce.Do(func() { close(s.done) })
}

// release stops and closes the capture once. Later calls return
// immediately, even while the first one is still blocked in Stop.
func (s *session) release() bool {
	if !s.released.CompareAndSwap(false, true) {
		return false
	}
	s.capture.ClearCallback()
	s.capture.Stop()
	s.capture.Close()
	return true
}
