// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the tracker.
const (
	// Audio defaults: 44.1kHz, 512-sample hops, 1024-sample frames.
	DefaultBackend    = BackendPortAudio
	DefaultDeviceID   = MinDeviceID // System default input device
	DefaultSampleRate = 44100       // CD-quality audio
	DefaultHopSize    = 512         // Samples per callback, ~11.6ms at 44.1kHz
	DefaultFrameSize  = 1024        // Analysis window, two hops
	DefaultLowLatency = false       // Standard latency mode
	DefaultRealtime   = true        // Pace file playback like a live device

	// Analysis defaults.
	DefaultEngine          = EngineSpectral
	DefaultWindow          = "Hann"
	DefaultMinBPM          = 60.0
	DefaultMaxBPM          = 200.0
	DefaultSensitivity     = 1.5  // Standard deviations above the mean ODF
	DefaultEnergyThreshold = 0.02 // RMS floor for the energy engine
	DefaultEnergyRatio     = 1.6  // Frame-to-frame RMS rise for the energy engine

	// Consumer defaults.
	DefaultPollInterval     = 33 * time.Millisecond // ~30Hz
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultWebSocketAddress = ":8080"
	DefaultMetricsAddress   = ":9100"
	DefaultMQTTBroker       = "tcp://localhost:1883"
	DefaultMQTTTopic        = "tempo/readings"
	DefaultMQTTClientID     = "tempo"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
)

// Capture backends.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendFile      = "file"
)

// Analysis engines.
const (
	EngineSpectral = "spectral"
	EngineEnergy   = "energy"
)

// NewConfig returns a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:     DefaultBackend,
			InputDevice: DefaultDeviceID,
			SampleRate:  DefaultSampleRate,
			HopSize:     DefaultHopSize,
			FrameSize:   DefaultFrameSize,
			LowLatency:  DefaultLowLatency,
			Realtime:    DefaultRealtime,
		},
		Analysis: AnalysisConfig{
			Engine:          DefaultEngine,
			Window:          DefaultWindow,
			MinBPM:          DefaultMinBPM,
			MaxBPM:          DefaultMaxBPM,
			Sensitivity:     DefaultSensitivity,
			EnergyThreshold: DefaultEnergyThreshold,
			EnergyRatio:     DefaultEnergyRatio,
		},
		Transport: TransportConfig{
			PollInterval:     DefaultPollInterval,
			UDPTargetAddress: DefaultUDPTargetAddress,
			WebSocketAddress: DefaultWebSocketAddress,
			MQTTBroker:       DefaultMQTTBroker,
			MQTTTopic:        DefaultMQTTTopic,
			MQTTClientID:     DefaultMQTTClientID,
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
	}
}

// HopSeconds returns the duration of one hop at the configured sample rate.
func (c *Config) HopSeconds() float64 {
	if c.Audio.SampleRate <= 0 {
		return 0
	}
	return float64(c.Audio.HopSize) / c.Audio.SampleRate
}
