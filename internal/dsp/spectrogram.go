package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// One FFT pass consumes hopSize new samples against a sliding
	// fftSize-sample excerpt.
	fftSize = 2048
	hopSize = 128

	// Real FFT of 2048 samples yields 1025 useful magnitude bins.
	spectrumSize = 1025

	// How many past passes are kept for the landmark neighborhood checks.
	ringFrames = 256
)

// hanningWindow is a 2050-point Hanning window with the zero-valued
// first and last points dropped, so the excerpt edges keep a little
// energy. This matches the service's fingerprinting exactly.
var hanningWindow = computeHanning()

func computeHanning() [fftSize]float64 {
	var w [fftSize]float64
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i+1)/2049)
	}
	return w
}

// spectrogram turns hop-sized sample batches into two spectral views:
// the fine per-pass power spectra, and the coarse peak-spread spectra the
// landmark extractor compares candidates against. Both views keep the
// last ringFrames passes.
type spectrogram struct {
	samples sampleRing
	fine    *ring[[]float64]
	spread  *ring[[]float64]

	excerpt [fftSize]float64
}

func newSpectrogram() *spectrogram {
	frame := func() []float64 {
		return make([]float64, spectrumSize)
	}
	return &spectrogram{
		fine:   newRing(ringFrames, frame),
		spread: newRing(ringFrames, frame),
	}
}

// push runs one FFT pass over a batch of at most hopSize samples and
// folds the result into both spectral views.
func (s *spectrogram) push(batch []int16) {
	s.samples.push(batch)
	s.samples.fill(&s.excerpt)

	windowed := make([]float64, fftSize)
	for i := range windowed {
		windowed[i] = s.excerpt[i] * hanningWindow[i]
	}

	out := fft.FFTReal(windowed)

	frame := make([]float64, spectrumSize)
	for i := range frame {
		power := (real(out[i])*real(out[i]) + imag(out[i])*imag(out[i])) / (1 << 17)
		if power < 1e-10 {
			power = 1e-10
		}
		frame[i] = power
	}
	s.fine.append(frame)

	s.spreadPeaks(frame)
}

// spreadPeaks smears the latest fine frame across frequency (max over
// the next two bins) and across time (running max pushed into the spread
// frames 1, 3 and 6 passes back), then appends it as the newest coarse
// frame.
func (s *spectrogram) spreadPeaks(fine []float64) {
	frame := make([]float64, spectrumSize)
	copy(frame, fine)

	for i := 0; i < spectrumSize; i++ {
		if i < spectrumSize-2 {
			if frame[i+1] > frame[i] {
				frame[i] = frame[i+1]
			}
			if frame[i+2] > frame[i] {
				frame[i] = frame[i+2]
			}
		}

		maxValue := frame[i]
		for _, back := range []int{-1, -3, -6} {
			former := s.spread.at(s.spread.pos + back)
			if former[i] > maxValue {
				maxValue = former[i]
			}
			former[i] = maxValue
		}
	}

	s.spread.append(frame)
}
