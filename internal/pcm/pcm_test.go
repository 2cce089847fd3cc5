package pcm

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Numenorean/ShazamAPI/internal/signature"
)

func writeWAV(t *testing.T, path string, samples []int16, rate int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestTargetSampleRate_MatchesWireFormat(t *testing.T) {
	assert.EqualValues(t, signature.TargetSampleRate, TargetSampleRate)
}

func TestDecodeFile_NativeWAV(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 5, 6, 7}
	path := filepath.Join(t.TempDir(), "test.wav")
	writeWAV(t, path, samples, TargetSampleRate)

	buf, err := DecodeFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, TargetSampleRate, buf.SampleRate)
	assert.Equal(t, samples, buf.Samples)
}

func TestDecode_EmptyInput(t *testing.T) {
	_, err := Decode(context.Background(), nil)

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDecodeFile_MissingFile(t *testing.T) {
	_, err := DecodeFile(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDecode_GarbageInput(t *testing.T) {
	requireFFmpeg(t)

	_, err := Decode(context.Background(), []byte("definitely not audio"))

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDecode_ResamplesForeignWAV(t *testing.T) {
	requireFFmpeg(t)

	// 44.1 kHz input goes through ffmpeg and comes out at the target
	// rate with roughly 16000/44100 of the samples.
	samples := make([]int16, 44100)
	path := filepath.Join(t.TempDir(), "cd.wav")
	writeWAV(t, path, samples, 44100)

	buf, err := DecodeFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, TargetSampleRate, buf.SampleRate)
	assert.InDelta(t, TargetSampleRate, len(buf.Samples), float64(TargetSampleRate)/10)
}

func TestBuffer_Duration(t *testing.T) {
	buf := &Buffer{Samples: make([]int16, 48000), SampleRate: TargetSampleRate}

	assert.InDelta(t, 3.0, buf.Seconds(), 1e-9)
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
}
