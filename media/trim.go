package media

import (
	"context"
	"fmt"
	"time"
)

// Trim re-encodes the first limit of a as mono 16-bit WAV and marks it
// truncated. pcm may carry samples already decoded while probing.
func (t Tools) Trim(ctx context.Context, a Artifact, pcm *PCM, limit time.Duration) (Artifact, error) {
	if limit <= 0 {
		limit = MaxDuration
	}
	if pcm == nil {
		decoded, err := t.Decode(ctx, a)
		if err != nil {
			return Artifact{}, fmt.Errorf("decoding for trim: %w", err)
		}
		pcm = &decoded
	}
	head := pcm.Head(limit)
	out, err := Encode(ContainerWAV, head)
	if err != nil {
		return Artifact{}, err
	}
	out.Truncated = true
	return out, nil
}
