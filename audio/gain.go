package audio

import "encoding/binary"

// softwareGain stands in for AGC on pulse, which has no per-stream gain control.
const softwareGain = 8

// gainFor returns the sample multiplier a capture applies under c.
func gainFor(c Constraints) int32 {
	if c.AutoGainControl {
		return softwareGain
	}
	return 1
}

// putPCM16 writes samples scaled by gain into dst as little-endian PCM16,
// saturating at the int16 range. dst must hold 2*len(samples) bytes.
func putPCM16(dst []byte, samples []int16, gain int32) {
	for i, s := range samples {
		v := min(max(int32(s)*gain, -32768), 32767)
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v)))
	}
}
