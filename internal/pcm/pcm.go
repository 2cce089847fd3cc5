package pcm

import (
	"time"

	"github.com/Numenorean/ShazamAPI/internal/signature"
)

// TargetSampleRate is the rate the fingerprinting pipeline expects. The
// wire format owns the value; decoding only conforms to it.
const TargetSampleRate = signature.TargetSampleRate

// Buffer holds decoded audio as signed 16-bit mono samples at a fixed
// sample rate. It is produced once per input and never mutated after.
type Buffer struct {
	Samples    []int16
	SampleRate int
}

// Seconds returns the buffer duration in seconds.
func (b *Buffer) Seconds() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Duration returns the buffer duration.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// DecodeError reports input audio that could not be decoded to PCM.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode audio: " + e.Reason + ": " + e.Err.Error()
	}
	return "decode audio: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
