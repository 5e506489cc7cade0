package media

import (
	"encoding/binary"
	"math"
	"time"
)

// PCM is mono 16-bit audio at a given rate.
type PCM struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the samples.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Head returns at most d worth of samples.
func (p PCM) Head(d time.Duration) PCM {
	n := int(int64(p.SampleRate) * int64(d) / int64(time.Second))
	if n >= len(p.Samples) {
		return p
	}
	return PCM{Samples: p.Samples[:n], SampleRate: p.SampleRate}
}

// FromBytes converts little-endian PCM16 into samples.
func FromBytes(data []byte, sampleRate int) PCM {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return PCM{Samples: samples, SampleRate: sampleRate}
}

// RMS returns the root mean square of little-endian PCM16 data, normalized
// to [0, 1].
func RMS(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Float32 converts samples to the [-1, 1] range used for playback.
func Float32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
