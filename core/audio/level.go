package audio

import (
	"encoding/binary"
	"math"
)

// Level computes the normalized RMS energy of a linear16 frame, in the range
// [0, 1]. Frames in other encodings report zero; callers should convert
// before metering.
func Level(frame []byte, info EncodingInfo) float64 {
	if info.Format != EncodingLinear16 || len(frame) < 2 {
		return 0
	}

	var sum float64
	samples := len(frame) / 2
	for i := 0; i < samples*2; i += 2 {
		s := int16(binary.LittleEndian.Uint16(frame[i:]))
		v := float64(s) / math.MaxInt16
		sum += v * v
	}

	return math.Sqrt(sum / float64(samples))
}
