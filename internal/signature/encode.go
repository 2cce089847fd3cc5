package signature

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// rawHeader mirrors the 48-byte little-endian header of the wire format.
// The CRC32 field covers every byte of the message after the first 8.
type rawHeader struct {
	Magic1          uint32
	CRC32           uint32
	SizeMinusHeader uint32
	Magic2          uint32
	Void1           [3]uint32
	ShiftedRateID   uint32
	Void2           [2]uint32
	SamplesPlusRate uint32 // NumSamples + sampleRate*0.24
	Magic3          uint32
}

// Encode serializes the signature into the service's binary layout.
func (s *Signature) Encode() ([]byte, error) {
	rateID, ok := sampleRateToID[s.SampleRate]
	if !ok {
		return nil, &EncodingError{Reason: fmt.Sprintf("unsupported sample rate %d", s.SampleRate)}
	}
	if s.NumSamples < 0 {
		return nil, &EncodingError{Reason: "negative sample count"}
	}

	var contents bytes.Buffer
	for band := Band(0); band < NumBands; band++ {
		peaks := s.Peaks[band]
		if len(peaks) == 0 {
			continue
		}

		packed, err := packPeaks(peaks)
		if err != nil {
			return nil, err
		}

		binary.Write(&contents, binary.LittleEndian, uint32(bandChunkBase+int(band)))
		binary.Write(&contents, binary.LittleEndian, uint32(len(packed)))
		contents.Write(packed)
		contents.Write(make([]byte, (4-len(packed)%4)%4))
	}

	sizeMinusHeader := uint32(contents.Len() + 8)

	header := rawHeader{
		Magic1:          headerMagic1,
		SizeMinusHeader: sizeMinusHeader,
		Magic2:          headerMagic2,
		ShiftedRateID:   rateID << 27,
		SamplesPlusRate: uint32(s.NumSamples) + uint32(float64(s.SampleRate)*0.24),
		Magic3:          headerMagic3,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &header)
	binary.Write(&buf, binary.LittleEndian, uint32(sizeChunkType))
	binary.Write(&buf, binary.LittleEndian, sizeMinusHeader)
	buf.Write(contents.Bytes())

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(out[8:]))
	return out, nil
}

// packPeaks writes one band's peak records: a uint8 delta of the FFT pass
// number (0xFF escaping to an absolute uint32), then the magnitude and
// corrected bin as uint16. Peaks must be in non-decreasing pass order.
func packPeaks(peaks []Peak) ([]byte, error) {
	var buf bytes.Buffer
	pass := 0

	for _, peak := range peaks {
		if peak.Pass < pass {
			return nil, &EncodingError{Reason: "peaks out of pass order"}
		}

		if peak.Pass-pass >= 255 {
			buf.WriteByte(0xFF)
			binary.Write(&buf, binary.LittleEndian, uint32(peak.Pass))
			pass = peak.Pass
		}

		buf.WriteByte(byte(peak.Pass - pass))
		binary.Write(&buf, binary.LittleEndian, peak.Magnitude)
		binary.Write(&buf, binary.LittleEndian, peak.Bin)
		pass = peak.Pass
	}

	return buf.Bytes(), nil
}

// EncodeToURI returns the signature as the base64 data URI the service
// accepts in recognition request bodies.
func (s *Signature) EncodeToURI() (string, error) {
	raw, err := s.Encode()
	if err != nil {
		return "", err
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(raw), nil
}
