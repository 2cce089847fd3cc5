package pcm

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/Numenorean/ShazamAPI/pkg/logger"
)

// Decode converts arbitrary audio bytes (MP3, OGG, WAV, anything ffmpeg
// understands) into a 16 kHz signed 16-bit mono Buffer. WAV input that
// already matches the target layout is decoded natively without
// spawning ffmpeg.
func Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}

	if isWAV(data) {
		if buf, ok := decodeNativeWAV(data); ok {
			return buf, nil
		}
	}

	return decodeFFmpeg(ctx, data)
}

// DecodeFile decodes the audio file at path.
func DecodeFile(ctx context.Context, path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Reason: "read " + path, Err: err}
	}
	return Decode(ctx, data)
}

func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

// decodeNativeWAV handles the fast path: a WAV file that is already
// 16 kHz mono 16-bit. Anything else falls through to ffmpeg, which also
// resamples.
func decodeNativeWAV(data []byte) (*Buffer, bool) {
	decoder := wav.NewDecoder(bytes.NewReader(data))

	pcmBuf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, false
	}

	if decoder.SampleRate != TargetSampleRate || decoder.NumChans != 1 || decoder.BitDepth != 16 {
		logger.Debug("wav layout needs resampling, using ffmpeg",
			zap.Uint32("sample_rate", decoder.SampleRate),
			zap.Uint16("channels", decoder.NumChans),
			zap.Uint16("bit_depth", decoder.BitDepth))
		return nil, false
	}

	samples := make([]int16, len(pcmBuf.Data))
	for i, s := range pcmBuf.Data {
		samples[i] = int16(s)
	}

	return &Buffer{Samples: samples, SampleRate: TargetSampleRate}, true
}

func decodeFFmpeg(ctx context.Context, data []byte) (*Buffer, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		"pipe:1",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = "ffmpeg failed"
		}
		return nil, &DecodeError{Reason: reason, Err: err}
	}

	raw := stdout.Bytes()
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}

	logger.Debug("decoded audio",
		zap.Int("input_bytes", len(data)),
		zap.Int("samples", len(samples)))

	return &Buffer{Samples: samples, SampleRate: TargetSampleRate}, nil
}
