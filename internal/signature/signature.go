package signature

import (
	"fmt"
	"math"
)

// DataURIPrefix is the media-type prefix the service expects around a
// base64-encoded binary signature.
const DataURIPrefix = "data:audio/vnd.shazam.sig;base64,"

// TargetSampleRate is the only rate the fingerprinting pipeline runs at.
const TargetSampleRate = 16000

const (
	headerSize = 48

	headerMagic1 = 0xCAFE2580
	headerMagic2 = 0x94119C00
	headerMagic3 = (15 << 19) + 0x40000

	// Type tag of the mandatory first TLV chunk, whose value repeats the
	// payload size declared in the header.
	sizeChunkType = 0x40000000

	// Band chunks are tagged bandChunkBase + band id.
	bandChunkBase = 0x60030040
)

var sampleRateToID = map[int]uint32{
	8000:  1,
	11025: 2,
	16000: 3,
	32000: 4,
	44100: 5,
	48000: 6,
}

var sampleRateFromID = map[uint32]int{}

func init() {
	for rate, id := range sampleRateToID {
		sampleRateFromID[id] = rate
	}
}

// Band identifies one frequency range of the fingerprint. Peaks below
// 250 Hz or above 5500 Hz are never stored.
type Band int

const (
	Band250To520 Band = iota
	Band520To1450
	Band1450To3500
	Band3500To5500

	NumBands = 4
)

func (b Band) String() string {
	switch b {
	case Band250To520:
		return "250-520"
	case Band520To1450:
		return "520-1450"
	case Band1450To3500:
		return "1450-3500"
	case Band3500To5500:
		return "3500-5500"
	}
	return fmt.Sprintf("band(%d)", int(b))
}

// BandFor maps a frequency in Hz to its storage band. The second return
// value is false for frequencies outside the stored range.
func BandFor(hz float64) (Band, bool) {
	switch {
	case hz < 250:
		return 0, false
	case hz < 520:
		return Band250To520, true
	case hz < 1450:
		return Band520To1450, true
	case hz < 3500:
		return Band1450To3500, true
	case hz <= 5500:
		return Band3500To5500, true
	default:
		return 0, false
	}
}

// Peak is one selected time-frequency landmark.
type Peak struct {
	// Pass is the index of the FFT pass (one pass per 128 samples)
	// at which the peak was detected, relative to the window start.
	Pass int

	// Magnitude is the log-scaled peak magnitude as the service
	// stores it: ln(power) * 1477.3 + 6144.
	Magnitude uint16

	// Bin is the corrected frequency bin, premultiplied by 64 and
	// adjusted by the interpolated sub-bin offset.
	Bin uint16
}

// FrequencyHz converts the stored bin back to a frequency, assuming
// 1024 useful FFT bins and the 64x premultiplication.
func (p Peak) FrequencyHz(sampleRate int) float64 {
	return float64(p.Bin) * (float64(sampleRate) / 2 / 1024 / 64)
}

// AmplitudePCM estimates the PCM amplitude the stored magnitude maps to.
func (p Peak) AmplitudePCM() float64 {
	return math.Sqrt(math.Exp((float64(p.Magnitude)-6144)/1477.3)*(1<<17)/2) / 1024
}

// Seconds converts the pass number to a time offset within the window.
func (p Peak) Seconds(sampleRate int) float64 {
	return float64(p.Pass) * 128 / float64(sampleRate)
}

// Signature is one window's acoustic fingerprint: peak landmarks grouped
// by frequency band, plus the metadata the service needs to interpret
// them. It maps one-to-one onto the binary wire format.
type Signature struct {
	SampleRate int
	NumSamples int
	Peaks      [NumBands][]Peak
}

// Seconds returns the audio duration the signature covers.
func (s *Signature) Seconds() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.NumSamples) / float64(s.SampleRate)
}

// SampleMS returns the covered duration in whole milliseconds, as sent
// in the recognition request body.
func (s *Signature) SampleMS() int {
	if s.SampleRate == 0 {
		return 0
	}
	return s.NumSamples * 1000 / s.SampleRate
}

// PeakCount returns the total number of landmarks across all bands.
func (s *Signature) PeakCount() int {
	total := 0
	for _, peaks := range s.Peaks {
		total += len(peaks)
	}
	return total
}

// EncodingError reports a malformed Signature handed to the encoder.
// It signals a bug in the landmark pipeline, not a recoverable condition.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "signature encoding: " + e.Reason
}

// FormatError reports binary data that does not parse as a signature.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "signature format: " + e.Reason
}
