package audio

import "time"

const (
	// DefaultSampleRate is the sample rate the realtime provider expects on
	// both the capture and playback paths.
	DefaultSampleRate = 24000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// Duration reports how long the given amount of encoded audio lasts when
// played back at this encoding.
func (e EncodingInfo) Duration(byteLen int) time.Duration {
	if e.IsZero() {
		return 0
	}
	samples := byteLen / e.Format.ByteSize()
	return time.Duration(float64(samples) / float64(e.SampleRate) * float64(time.Second))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
