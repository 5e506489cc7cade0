package audio

import (
	"sync"
	"testing"
	"time"
)

func TestFakeCaptureTracksActive(t *testing.T) {
	ctx := NewFakeContextPCM(make([]byte, 3200), false)
	capture, err := ctx.NewCapture(nil, DefaultCaptureConfig())
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got int
	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		got += len(data)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	if ctx.ActiveCaptures() != 1 {
		t.Fatalf("ActiveCaptures = %d, want 1", ctx.ActiveCaptures())
	}
	<-capture.(*FakeCapture).AudioDone()
	capture.Stop()
	capture.Stop()
	capture.ClearCallback()

	if ctx.ActiveCaptures() != 0 {
		t.Errorf("ActiveCaptures = %d after Stop, want 0", ctx.ActiveCaptures())
	}
	mu.Lock()
	defer mu.Unlock()
	if got < 3200 {
		t.Errorf("delivered %d bytes, want at least 3200", got)
	}
}

func TestFakeCaptureMuted(t *testing.T) {
	ctx := NewFakeContextPCM(make([]byte, 640), false)
	ctx.MuteFor = 200 * time.Millisecond
	capture, _ := ctx.NewCapture(nil, DefaultCaptureConfig())

	first := make(chan time.Time, 1)
	capture.SetCallback(func([]byte, uint32) {
		select {
		case first <- time.Now():
		default:
		}
	})
	start := time.Now()
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	defer capture.Stop()

	select {
	case at := <-first:
		if at.Sub(start) < 150*time.Millisecond {
			t.Errorf("first chunk after %v, want >= mute period", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audio delivered")
	}
}

func TestCueSamples(t *testing.T) {
	for _, c := range []Cue{CueStart, CueStop, CueError} {
		s := CueSamples(c)
		if len(s) == 0 {
			t.Fatalf("cue %d empty", c)
		}
		for _, v := range s {
			if v > 1 || v < -1 {
				t.Fatalf("cue %d sample out of range: %f", c, v)
			}
		}
	}
	p := &FakePlayer{}
	PlayCue(p, CueStop)
	if len(p.Played()) != 1 || p.Rates()[0] != cueSampleRate {
		t.Error("PlayCue did not reach the player")
	}
}
