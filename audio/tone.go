package audio

import "math"

// Cue is a short tone played on recording transitions.
type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueError
)

const cueSampleRate = 44100

// CueSamples renders the waveform for a cue.
func CueSamples(c Cue) []float32 {
	switch c {
	case CueStart:
		return tick(1200, 0.2, 0.5, 60)
	case CueStop:
		return tick(900, 0.2, 0.5, 40)
	default:
		beep := tick(350, 0.08, 0.6, 30)
		gap := make([]float32, int(cueSampleRate*0.05))
		out := make([]float32, 0, len(beep)*2+len(gap))
		out = append(out, beep...)
		out = append(out, gap...)
		return append(out, beep...)
	}
}

// PlayCue plays a cue on p, ignoring errors.
func PlayCue(p Player, c Cue) {
	if p == nil {
		return
	}
	_ = p.Play(CueSamples(c), cueSampleRate)
}

func tick(freq, duration, volume, decay float64) []float32 {
	n := int(cueSampleRate * duration)
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / cueSampleRate
		out[i] = float32(math.Sin(2*math.Pi*freq*t) * volume * math.Exp(-t*decay))
	}
	return out
}
