package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcmFrame(sample int16, samples int) []byte {
	frame := make([]byte, samples*2)
	for i := 0; i < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(sample))
	}
	return frame
}

func TestLevelOfSilenceIsZero(t *testing.T) {
	if level := Level(pcmFrame(0, 128), GetDefaultEncodingInfo()); level != 0 {
		t.Fatalf("expected zero level for silence, got %f", level)
	}
}

func TestLevelOfFullScaleSquareWaveIsOne(t *testing.T) {
	level := Level(pcmFrame(math.MaxInt16, 128), GetDefaultEncodingInfo())
	if math.Abs(level-1) > 1e-6 {
		t.Fatalf("expected full-scale level 1, got %f", level)
	}
}

func TestLevelIncreasesWithAmplitude(t *testing.T) {
	info := GetDefaultEncodingInfo()
	quiet := Level(pcmFrame(100, 128), info)
	loud := Level(pcmFrame(10000, 128), info)
	if quiet >= loud {
		t.Fatalf("expected monotonic level, got quiet=%f loud=%f", quiet, loud)
	}
}

func TestLevelIsZeroForNonLinearEncodings(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	if level := Level([]byte{0xff, 0xff, 0xff, 0xff}, info); level != 0 {
		t.Fatalf("expected zero level for mulaw frames, got %f", level)
	}
}

func TestDurationOfLinear16(t *testing.T) {
	info := GetDefaultEncodingInfo()
	// 24000 samples of 2 bytes each is one second.
	if got := info.Duration(48000); got.Seconds() != 1 {
		t.Fatalf("expected 1s, got %v", got)
	}
}
