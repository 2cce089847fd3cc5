package dsp

import (
	"github.com/Numenorean/ShazamAPI/internal/signature"
)

// Generator turns 16 kHz signed 16-bit mono samples into signatures.
// Samples are accumulated with Feed and consumed in hop-sized chunks by
// Next or Flush. The pipeline is fully deterministic: identical samples
// always produce byte-identical signatures.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	// MaxSeconds and MaxPeaks bound how much input Next consumes per
	// signature: consumption stops once the signature covers MaxSeconds
	// and carries MaxPeaks landmarks.
	MaxSeconds float64
	MaxPeaks   int

	pending   []int16
	processed int

	spec *spectrogram
	sig  *signature.Signature
}

func NewGenerator() *Generator {
	g := &Generator{
		MaxSeconds: 3.1,
		MaxPeaks:   255,
	}
	g.reset()
	return g
}

// Feed queues samples for later consumption.
func (g *Generator) Feed(samples []int16) {
	g.pending = append(g.pending, samples...)
}

// SamplesProcessed returns how many queued samples have been consumed.
func (g *Generator) SamplesProcessed() int {
	return g.processed
}

func (g *Generator) remaining() int {
	return len(g.pending) - g.processed
}

// Next consumes queued samples into the next signature. It returns nil
// once fewer than one hop of samples remains unconsumed.
func (g *Generator) Next() (*signature.Signature, error) {
	if g.remaining() < hopSize {
		return nil, nil
	}

	for g.remaining() >= hopSize && (g.sig.Seconds() < g.MaxSeconds || g.sig.PeakCount() < g.MaxPeaks) {
		if err := g.processChunk(g.pending[g.processed:g.processed+hopSize], hopSize); err != nil {
			return nil, err
		}
		g.processed += hopSize
	}

	sig := g.sig
	g.reset()
	return sig, nil
}

// Flush consumes every remaining queued sample into a single signature,
// zero-padding the final partial hop instead of dropping it. Flushing an
// empty generator still yields a valid, minimal signature.
func (g *Generator) Flush() (*signature.Signature, error) {
	for g.remaining() >= hopSize {
		if err := g.processChunk(g.pending[g.processed:g.processed+hopSize], hopSize); err != nil {
			return nil, err
		}
		g.processed += hopSize
	}

	if rem := g.remaining(); rem > 0 {
		chunk := make([]int16, hopSize)
		copy(chunk, g.pending[g.processed:])
		if err := g.processChunk(chunk, rem); err != nil {
			return nil, err
		}
		g.processed += rem
	}

	sig := g.sig
	g.reset()
	return sig, nil
}

// processChunk runs one FFT pass over a hop of samples and extracts
// landmarks once enough passes have accumulated. realSamples is how many
// of the chunk's samples are input rather than padding.
func (g *Generator) processChunk(chunk []int16, realSamples int) error {
	g.sig.NumSamples += realSamples
	g.spec.push(chunk)

	if g.spec.spread.written >= recognitionDelay {
		return recognizePeaks(g.spec, g.sig)
	}
	return nil
}

func (g *Generator) reset() {
	g.spec = newSpectrogram()
	g.sig = &signature.Signature{SampleRate: signature.TargetSampleRate}
}
