package signature

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// Decode parses a binary signature, validating the magic fields, the
// declared size and the CRC-32 before reconstructing the peak lists.
func Decode(data []byte) (*Signature, error) {
	if len(data) < headerSize+8 {
		return nil, &FormatError{Reason: "message shorter than header"}
	}

	var header rawHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, &FormatError{Reason: "unreadable header"}
	}

	if header.Magic1 != headerMagic1 || header.Magic2 != headerMagic2 {
		return nil, &FormatError{Reason: "wrong magic in header"}
	}
	if int(header.SizeMinusHeader) != len(data)-headerSize {
		return nil, &FormatError{Reason: "wrong size in header"}
	}
	if crc32.ChecksumIEEE(data[8:]) != header.CRC32 {
		return nil, &FormatError{Reason: "wrong checksum in header"}
	}

	rate, ok := sampleRateFromID[header.ShiftedRateID>>27]
	if !ok || header.ShiftedRateID != (header.ShiftedRateID>>27)<<27 {
		return nil, &FormatError{Reason: fmt.Sprintf("unknown sample rate id %#x", header.ShiftedRateID)}
	}

	sig := &Signature{
		SampleRate: rate,
		NumSamples: int(header.SamplesPlusRate) - int(float64(rate)*0.24),
	}

	buf := data[headerSize:]
	if binary.LittleEndian.Uint32(buf[0:4]) != sizeChunkType ||
		binary.LittleEndian.Uint32(buf[4:8]) != header.SizeMinusHeader {
		return nil, &FormatError{Reason: "unexpected first chunk"}
	}
	buf = buf[8:]

	for len(buf) > 0 {
		if len(buf) < 8 {
			return nil, &FormatError{Reason: "truncated band chunk header"}
		}

		chunkType := binary.LittleEndian.Uint32(buf[0:4])
		chunkLen := int(binary.LittleEndian.Uint32(buf[4:8]))
		buf = buf[8:]

		band := int(chunkType) - bandChunkBase
		if band < 0 || band >= NumBands {
			return nil, &FormatError{Reason: fmt.Sprintf("unknown chunk type %#x", chunkType)}
		}

		padded := chunkLen + (4-chunkLen%4)%4
		if len(buf) < padded {
			return nil, &FormatError{Reason: "truncated band chunk payload"}
		}

		peaks, err := unpackPeaks(buf[:chunkLen])
		if err != nil {
			return nil, err
		}
		sig.Peaks[band] = peaks
		buf = buf[padded:]
	}

	return sig, nil
}

func unpackPeaks(data []byte) ([]Peak, error) {
	var peaks []Peak
	pass := 0

	for len(data) > 0 {
		delta := data[0]
		data = data[1:]

		if delta == 0xFF {
			if len(data) < 4 {
				return nil, &FormatError{Reason: "truncated pass escape"}
			}
			pass = int(binary.LittleEndian.Uint32(data[0:4]))
			data = data[4:]
			continue
		}

		pass += int(delta)
		if len(data) < 4 {
			return nil, &FormatError{Reason: "truncated peak record"}
		}

		peaks = append(peaks, Peak{
			Pass:      pass,
			Magnitude: binary.LittleEndian.Uint16(data[0:2]),
			Bin:       binary.LittleEndian.Uint16(data[2:4]),
		})
		data = data[4:]
	}

	return peaks, nil
}

// DecodeFromURI parses a signature from its data URI form.
func DecodeFromURI(uri string) (*Signature, error) {
	if !strings.HasPrefix(uri, DataURIPrefix) {
		return nil, &FormatError{Reason: "not an audio/vnd.shazam.sig data URI"}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, DataURIPrefix))
	if err != nil {
		return nil, &FormatError{Reason: "invalid base64 payload"}
	}

	return Decode(raw)
}
