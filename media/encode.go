package media

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/orcaman/writerseeker"
)

const flacBlockSize = 4096

// Encode packs pcm into the requested container. Only WAV and FLAC can be
// produced locally.
func Encode(c Container, pcm PCM) (Artifact, error) {
	var (
		data []byte
		err  error
	)
	switch c {
	case ContainerWAV:
		data, err = EncodeWAV(pcm)
	case ContainerFLAC:
		data, err = EncodeFLAC(pcm)
	default:
		return Artifact{}, fmt.Errorf("%w: cannot encode %q", ErrUnsupportedType, c)
	}
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Data:      data,
		MIME:      c.MIME(),
		Container: c,
		Name:      "audio." + c.Ext(),
		Duration:  pcm.Duration(),
	}, nil
}

// EncodeWAV writes a mono 16-bit WAV file.
func EncodeWAV(pcm PCM) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, pcm.SampleRate, 16, 1, 1)

	ints := make([]int, len(pcm.Samples))
	for i, s := range pcm.Samples {
		ints[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: pcm.SampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing wav encoder: %w", err)
	}
	return io.ReadAll(ws.Reader())
}

// EncodeFLAC writes a mono 16-bit FLAC stream with verbatim subframes.
func EncodeFLAC(pcm PCM) ([]byte, error) {
	var out bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(pcm.SampleRate),
		NChannels:     1,
		BitsPerSample: 16,
		NSamples:      uint64(len(pcm.Samples)),
	}
	enc, err := flac.NewEncoder(&out, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	for pos := 0; pos < len(pcm.Samples); pos += flacBlockSize {
		block := pcm.Samples[pos:min(pos+flacBlockSize, len(pcm.Samples))]
		samples := make([]int32, len(block))
		for i, s := range block {
			samples[i] = int32(s)
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(pcm.SampleRate),
				Channels:      frame.ChannelsMono,
				BitsPerSample: 16,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return out.Bytes(), nil
}
