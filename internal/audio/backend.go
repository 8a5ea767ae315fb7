// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"tempo/internal/config"
)

// StreamParams describes the capture stream the tracker needs: mono float32
// input delivered FramesPerBuffer samples at a time.
type StreamParams struct {
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
}

// Backend is an audio subsystem able to open capture streams. Initialize and
// Terminate are paired; every stream must be closed before Terminate.
type Backend interface {
	Initialize() error
	Terminate() error
	// OpenInputStream opens a stream that will call process with exactly
	// FramesPerBuffer samples per call once started. process runs on the
	// backend's realtime thread.
	OpenInputStream(params StreamParams, process func([]float32)) (Stream, error)
}

// Stream is an open capture stream. Abort stops delivery immediately without
// draining and returns only after the last callback has finished.
type Stream interface {
	Start() error
	Abort() error
	Close() error
}

// NewBackend returns the backend selected by cfg.Audio.Backend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Audio.Backend {
	case config.BackendPortAudio:
		return NewPortAudioBackend(cfg.Audio.InputDevice, cfg.Audio.LowLatency), nil
	case config.BackendMalgo:
		return NewMalgoBackend(), nil
	case config.BackendFile:
		return NewFileBackend(cfg.Audio.InputFile, cfg.Audio.Realtime), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %q", cfg.Audio.Backend)
	}
}

func streamParams(cfg *config.Config) StreamParams {
	return StreamParams{
		Channels:        1,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.HopSize,
	}
}
