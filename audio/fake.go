package audio

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	fakeFrameSize     = 320 // 20ms at 16kHz
	fakeBytesPerFrame = 2   // 16-bit mono
)

// ErrPermissionDenied is returned by capture backends when the OS refuses
// microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

// FakeContext replays PCM16 mono audio as if it came from a microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// MuteFor delays the first delivered chunk, like a track that reports
	// muted while the driver warms up.
	MuteFor time.Duration
	// StartErr is returned from CaptureDevice.Start.
	StartErr error

	active atomic.Int32
	mu     sync.Mutex
	player *FakePlayer
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewFakeContextPCM builds a context from raw PCM16 mono samples.
func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

// ActiveCaptures reports how many captures are started and not yet stopped.
func (f *FakeContext) ActiveCaptures() int { return int(f.active.Load()) }

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{
		ctx:       f,
		pcm:       f.pcm,
		realtime:  f.realtime,
		muteFor:   f.MuteFor,
		startErr:  f.StartErr,
		audioDone: make(chan struct{}),
	}, nil
}

func (f *FakeContext) NewPlayer() (Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.player == nil {
		f.player = &FakePlayer{}
	}
	return f.player, nil
}

type FakeCapture struct {
	ctx       *FakeContext
	pcm       []byte
	realtime  bool
	muteFor   time.Duration
	startErr  error
	audioDone chan struct{}
	doneOnce  sync.Once

	mu       sync.Mutex
	cb       DataCallback
	running  bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.running = true
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()
	if f.ctx != nil {
		f.ctx.active.Add(1)
	}

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(SampleRate)
	}

	go func() {
		defer close(feedDone)
		if f.muteFor > 0 {
			select {
			case <-stopCh:
				return
			case <-time.After(f.muteFor):
			}
		}
		pos := 0
		silence := make([]byte, chunkBytes)
		audioFinished := false
		for {
			select {
			case <-stopCh:
				return
			default:
			}

			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					if !audioFinished {
						audioFinished = true
						f.doneOnce.Do(func() { close(f.audioDone) })
					}
					cb(silence, fakeFrameSize)
				}
			}

			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	feedDone := f.feedDone
	f.mu.Unlock()

	<-feedDone
	if f.ctx != nil {
		f.ctx.active.Add(-1)
	}
}

func (f *FakeCapture) Close() { f.Stop() }

// FakePlayer records what it was asked to play.
type FakePlayer struct {
	mu     sync.Mutex
	played [][]float32
	rates  []int
}

func (p *FakePlayer) Play(samples []float32, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.played = append(p.played, cp)
	p.rates = append(p.rates, sampleRate)
	return nil
}

func (p *FakePlayer) Close() {}

// Played returns every waveform passed to Play, in order.
func (p *FakePlayer) Played() [][]float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]float32(nil), p.played...)
}

// Rates returns the sample rate of each Play call.
func (p *FakePlayer) Rates() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.rates...)
}
