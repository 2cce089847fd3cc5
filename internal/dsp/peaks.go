package dsp

import (
	"errors"
	"math"

	"github.com/Numenorean/ShazamAPI/internal/signature"
)

// The landmark extractor compares a candidate pass against spread frames
// around it. A candidate is only examined once 46 newer passes exist, so
// every check below reaches into settled history.
const recognitionDelay = 46

// Spread-frame neighbor offsets around the examined bin, and the wider
// time horizon (ring positions relative to the current write cursor)
// used for non-maximum suppression.
var (
	freqNeighborOffsets = []int{-10, -7, -4, -3, 1, 2, 5, 8}
	timeNeighborOffsets = []int{-53, -45, 165, 172, 179, 186, 193, 200, 214, 221, 228, 235, 242, 249}
)

// errPeakVariation signals a non-positive second difference around a
// selected peak. The selection rules make this impossible for well-formed
// spectra, so hitting it means the pipeline is broken.
var errPeakVariation = errors.New("dsp: peak magnitude variation is not positive")

// recognizePeaks examines the pass that is recognitionDelay behind the
// newest one and appends every qualifying landmark to sig. Candidates
// must carry a minimum energy, beat the decayed spread threshold of the
// pass just before them, and be local maxima of their time-frequency
// neighborhood.
func recognizePeaks(s *spectrogram, sig *signature.Signature) error {
	fine := s.fine.at(s.fine.pos - recognitionDelay)
	spreadBefore := s.spread.at(s.spread.pos - recognitionDelay - 3)

	pass := s.spread.written - recognitionDelay

	for bin := 10; bin < 1015; bin++ {
		value := fine[bin]
		if value < 1.0/64 || value < spreadBefore[bin-1] {
			continue
		}

		maxNeighbor := 0.0
		for _, off := range freqNeighborOffsets {
			if v := spreadBefore[bin+off]; v > maxNeighbor {
				maxNeighbor = v
			}
		}
		if value <= maxNeighbor {
			continue
		}

		for _, off := range timeNeighborOffsets {
			if v := s.spread.at(s.spread.pos + off)[bin-1]; v > maxNeighbor {
				maxNeighbor = v
			}
		}
		if value <= maxNeighbor {
			continue
		}

		peakMagnitude := logMagnitude(value)
		magnitudeBefore := logMagnitude(fine[bin-1])
		magnitudeAfter := logMagnitude(fine[bin+1])

		variation := peakMagnitude*2 - magnitudeBefore - magnitudeAfter
		if variation <= 0 {
			return errPeakVariation
		}

		// Interpolate the sub-bin offset and premultiply by 64.
		correctedBin := float64(bin)*64 + (magnitudeAfter-magnitudeBefore)*32/variation

		frequencyHz := correctedBin * (float64(sig.SampleRate) / 2 / 1024 / 64)
		band, ok := signature.BandFor(frequencyHz)
		if !ok {
			continue
		}

		sig.Peaks[band] = append(sig.Peaks[band], signature.Peak{
			Pass:      pass,
			Magnitude: uint16(peakMagnitude),
			Bin:       uint16(correctedBin),
		})
	}

	return nil
}

func logMagnitude(power float64) float64 {
	return math.Log(math.Max(1.0/64, power))*1477.3 + 6144
}
