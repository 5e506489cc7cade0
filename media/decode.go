package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// Decode returns the artifact as mono 16-bit samples at its native rate.
// WAV and FLAC are decoded in-process; everything else goes through ffmpeg.
func (t Tools) Decode(ctx context.Context, a Artifact) (PCM, error) {
	switch a.Container {
	case ContainerWAV:
		return decodeWAV(a.Data)
	case ContainerFLAC:
		return decodeFLAC(a.Data)
	default:
		return t.decodeFFmpeg(ctx, a.Data)
	}
}

func decodeWAV(data []byte) (PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return PCM{}, errors.New("invalid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("reading wav samples: %w", err)
	}
	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = to16(sum/channels, int(d.BitDepth))
	}
	return PCM{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

func decodeFLAC(data []byte) (PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("opening flac stream: %w", err)
	}
	defer stream.Close()

	bps := int(stream.Info.BitsPerSample)
	var samples []int16
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("parsing flac frame: %w", err)
		}
		if len(f.Subframes) == 0 {
			continue
		}
		n := len(f.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum int
			for _, sub := range f.Subframes {
				sum += int(sub.Samples[i])
			}
			samples = append(samples, to16(sum/len(f.Subframes), bps))
		}
	}
	return PCM{Samples: samples, SampleRate: int(stream.Info.SampleRate)}, nil
}

// to16 rescales a sample of the given bit depth to 16 bits.
func to16(v, depth int) int16 {
	switch {
	case depth > 16:
		v >>= depth - 16
	case depth > 0 && depth < 16:
		v <<= 16 - depth
	}
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
