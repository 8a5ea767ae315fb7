// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tempo/internal/config"
	"tempo/pkg/utils"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV stores mono samples as a 16-bit WAV file, repeating every sample
// on each channel.
func writeWAV(t *testing.T, samples []float32, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clicks.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		for range channels {
			data = append(data, int(s*32767))
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func fileConfig(path string, realtime bool) *config.Config {
	cfg := config.NewConfig()
	cfg.Audio.Backend = config.BackendFile
	cfg.Audio.InputFile = path
	cfg.Audio.Realtime = realtime
	cfg.Analysis.Engine = config.EngineEnergy
	return cfg
}

func TestFileBackendClickTrack(t *testing.T) {
	for _, channels := range []int{1, 2} {
		samples := utils.GenerateClickTrack(int(4*config.DefaultSampleRate), config.DefaultSampleRate, 120)
		path := writeWAV(t, samples, config.DefaultSampleRate, channels)

		tr := NewTracker(fileConfig(path, false))
		s, err := tr.Start()
		require.NoError(t, err)

		select {
		case <-s.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("file playback did not finish")
		}

		r := s.Poll()
		require.NoError(t, tr.Stop(s))

		// Clicks at 0, 0.5, ... 3.5 seconds.
		assert.InDelta(t, 8, r.Beats, 1, "channels=%d", channels)
		assert.InDelta(t, 120, r.BPM, 5, "channels=%d", channels)
		assert.Equal(t, StateClosed, s.State())
	}
}

func TestFileBackendAbortMidPlayback(t *testing.T) {
	samples := utils.GenerateSineWave(int(5*config.DefaultSampleRate), config.DefaultSampleRate, 440)
	path := writeWAV(t, samples, config.DefaultSampleRate, 1)

	tr := NewTracker(fileConfig(path, true))
	s, err := tr.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Loudness() > 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, tr.Stop(s))

	select {
	case <-s.Done():
	default:
		t.Fatal("producer goroutine still running after Stop")
	}
}

func TestFileBackendOpenErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		tr := NewTracker(fileConfig(filepath.Join(t.TempDir(), "missing.wav"), false))
		_, err := tr.Start()
		assert.ErrorIs(t, err, ErrOpenStream)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("not a wav file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "noise.wav")
		require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF"), 0o644))
		tr := NewTracker(fileConfig(path, false))
		_, err := tr.Start()
		assert.ErrorIs(t, err, ErrOpenStream)
		assert.Contains(t, tr.LastError(), "invalid WAV")
	})

	t.Run("sample rate mismatch", func(t *testing.T) {
		path := writeWAV(t, make([]float32, 4800), 48000, 1)
		tr := NewTracker(fileConfig(path, false))
		_, err := tr.Start()
		assert.ErrorIs(t, err, ErrOpenStream)
		assert.Contains(t, tr.LastError(), "48000")
	})
}

func TestProbeWAV(t *testing.T) {
	path := writeWAV(t, make([]float32, 4800), 48000, 2)

	info, err := ProbeWAV(path)
	require.NoError(t, err)
	assert.Equal(t, WAVInfo{SampleRate: 48000, NumChannels: 2, BitDepth: 16}, info)

	_, err = ProbeWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
