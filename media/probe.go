package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// DefaultProbeTimeout bounds the metadata read before falling back to a
// full decode.
const DefaultProbeTimeout = 2 * time.Second

type ProbeMethod string

const (
	ProbeMetadata ProbeMethod = "metadata"
	ProbeDecode   ProbeMethod = "decode"
)

type ProbeResult struct {
	Duration time.Duration
	Method   ProbeMethod
	// MetadataErr is set when the metadata read failed or timed out and
	// the duration came from decoding.
	MetadataErr error
	// PCM holds the decoded samples when Method is ProbeDecode.
	PCM *PCM
}

// Probe determines a's duration. Container metadata is tried first within
// timeout; if it is missing, zero or unreadable the audio is decoded.
func (t Tools) Probe(ctx context.Context, a Artifact, timeout time.Duration) (ProbeResult, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	d, err := t.metadata(ctx, a, timeout)
	if err == nil {
		return ProbeResult{Duration: d, Method: ProbeMetadata}, nil
	}
	if ctx.Err() != nil {
		return ProbeResult{}, ctx.Err()
	}

	pcm, derr := t.Decode(ctx, a)
	if derr != nil {
		return ProbeResult{MetadataErr: err}, fmt.Errorf("%w: %w", ErrProbe, errors.Join(err, derr))
	}
	if len(pcm.Samples) == 0 || pcm.SampleRate <= 0 {
		return ProbeResult{MetadataErr: err}, fmt.Errorf("%w: no samples decoded", ErrProbe)
	}
	return ProbeResult{Duration: pcm.Duration(), Method: ProbeDecode, MetadataErr: err, PCM: &pcm}, nil
}

func (t Tools) metadata(ctx context.Context, a Artifact, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		d   time.Duration
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var r result
		switch a.Container {
		case ContainerWAV:
			r.d, r.err = wavDuration(a.Data)
		case ContainerFLAC:
			r.d, r.err = flacDuration(a.Data)
		default:
			r.d, r.err = t.probeFFprobe(ctx, a.Data)
		}
		if r.err == nil && r.d <= 0 {
			r.err = fmt.Errorf("%w: container reports %v", ErrProbe, r.d)
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		return r.d, r.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: metadata timeout: %w", ErrProbe, ctx.Err())
	}
}

func wavDuration(data []byte) (time.Duration, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%w: invalid wav header", ErrProbe)
	}
	if err := d.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	frameBytes := int64(d.NumChans) * int64((d.BitDepth-1)/8+1)
	if d.PCMLen() == 0 || frameBytes == 0 || d.SampleRate == 0 {
		return 0, fmt.Errorf("%w: wav has no samples", ErrProbe)
	}
	frames := d.PCMLen() / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(d.SampleRate), nil
}

func flacDuration(data []byte) (time.Duration, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	defer stream.Close()
	info := stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0, fmt.Errorf("%w: flac stream length unknown", ErrProbe)
	}
	return time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate), nil
}
