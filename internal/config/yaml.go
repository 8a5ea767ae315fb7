// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tempo/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Beat detection settings.
	Transport TransportConfig `yaml:"transport"` // Result publishing settings.
	Metrics   MetricsConfig   `yaml:"metrics"`   // Prometheus exporter settings.
}

// AudioConfig holds settings related to audio capture and framing.
type AudioConfig struct {
	Backend     string  `yaml:"backend"`      // Capture backend: "portaudio", "malgo" or "file".
	InputDevice int     `yaml:"input_device"` // PortAudio device index for audio input (-1 for default).
	InputFile   string  `yaml:"input_file"`   // WAV file read by the "file" backend.
	Realtime    bool    `yaml:"realtime"`     // Pace the "file" backend at the sample rate instead of as fast as possible.
	SampleRate  float64 `yaml:"sample_rate"`  // Sample rate in Hz (e.g., 44100, 48000).
	HopSize     int     `yaml:"hop_size"`     // Samples delivered per callback; analysis advances one hop at a time.
	FrameSize   int     `yaml:"frame_size"`   // Sliding analysis window in samples, power of 2, >= hop_size.
	LowLatency  bool    `yaml:"low_latency"`  // Request low latency settings from the device.
}

// AnalysisConfig holds settings for the beat detection engine.
type AnalysisConfig struct {
	Engine          string  `yaml:"engine"`           // "spectral" (spectral flux + tempo tracking) or "energy".
	Window          string  `yaml:"window"`           // Window function for the spectral engine (e.g., "Hann", "Hamming").
	MinBPM          float64 `yaml:"min_bpm"`          // Slowest tempo considered.
	MaxBPM          float64 `yaml:"max_bpm"`          // Fastest tempo considered; also the minimum beat spacing.
	Sensitivity     float64 `yaml:"sensitivity"`      // Onset threshold in standard deviations above the mean.
	EnergyThreshold float64 `yaml:"energy_threshold"` // Minimum frame RMS for the energy engine.
	EnergyRatio     float64 `yaml:"energy_ratio"`     // Minimum RMS rise between frames for the energy engine.
}

// TransportConfig holds settings for publishing polled results.
type TransportConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`      // Interval between polls of the tracker.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send readings as binary UDP packets.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast readings as JSON over WebSocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the WebSocket server (e.g., ":8080").
	MQTTEnabled      bool          `yaml:"mqtt_enabled"`       // Publish readings with beats to an MQTT broker.
	MQTTBroker       string        `yaml:"mqtt_broker"`        // Broker URL (e.g., "tcp://localhost:1883").
	MQTTTopic        string        `yaml:"mqtt_topic"`         // Topic readings are published on.
	MQTTClientID     string        `yaml:"mqtt_client_id"`     // Client identifier presented to the broker.
}

// MetricsConfig holds settings for the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve /metrics.
	Address string `yaml:"address"` // Listen address for the metrics server.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"tempo.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the tracker cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	a := c.Audio
	switch a.Backend {
	case BackendPortAudio, BackendMalgo:
	case BackendFile:
		if a.InputFile == "" {
			errs = append(errs, errors.New("audio.input_file must be set for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of portaudio, malgo, file", a.Backend))
	}
	if a.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device %d is invalid (use -1 for the default device)", a.InputDevice))
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f is outside %d-%d Hz", a.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if a.HopSize <= 0 || a.HopSize > a.FrameSize {
		errs = append(errs, fmt.Errorf("audio.hop_size %d must be in 1..frame_size (%d)", a.HopSize, a.FrameSize))
	}
	if !bitint.IsPowerOfTwo(a.FrameSize) {
		errs = append(errs, fmt.Errorf("audio.frame_size %d is not a power of two (try %d)", a.FrameSize, bitint.NextPowerOfTwo(a.FrameSize)))
	} else if a.FrameSize > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frame_size %d exceeds %d", a.FrameSize, MaxBufferFrames))
	}

	an := c.Analysis
	switch an.Engine {
	case EngineSpectral, EngineEnergy:
	default:
		errs = append(errs, fmt.Errorf("analysis.engine %q is not one of spectral, energy", an.Engine))
	}
	if an.MinBPM <= 0 || an.MaxBPM <= an.MinBPM {
		errs = append(errs, fmt.Errorf("analysis tempo range %.1f-%.1f bpm is invalid", an.MinBPM, an.MaxBPM))
	}
	if an.Sensitivity < 0 {
		errs = append(errs, fmt.Errorf("analysis.sensitivity %.2f must not be negative", an.Sensitivity))
	}

	t := c.Transport
	if t.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("transport.poll_interval must be positive"))
	}
	if t.UDPEnabled && !strings.Contains(t.UDPTargetAddress, ":") {
		errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress))
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		errs = append(errs, errors.New("transport.websocket_address must be set when the WebSocket transport is enabled"))
	}
	if t.MQTTEnabled {
		if u, err := url.Parse(t.MQTTBroker); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("transport.mqtt_broker '%s' is not a broker URL (e.g. tcp://localhost:1883)", t.MQTTBroker))
		}
		if t.MQTTTopic == "" {
			errs = append(errs, errors.New("transport.mqtt_topic must be set when MQTT is enabled"))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics.address must be set when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies TEMPO_* environment variables on top of the file
// and default values.
func (cfg *Config) applyEnvOverrides() {
	// TEMPO_LOG_LEVEL
	if val, ok := os.LookupEnv("TEMPO_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}

	// TEMPO_AUDIO_{...}
	// These are specific to capture.

	// TEMPO_AUDIO_BACKEND
	if val, ok := os.LookupEnv("TEMPO_AUDIO_BACKEND"); ok {
		cfg.Audio.Backend = strings.ToLower(val)
	}
	// TEMPO_AUDIO_DEVICE
	if val, ok := os.LookupEnv("TEMPO_AUDIO_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
		}
	}
	// TEMPO_AUDIO_SAMPLE_RATE
	if val, ok := os.LookupEnv("TEMPO_AUDIO_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = fVal
		}
	}

	// TEMPO_UDP_{...}
	// These are specific to the transport layer.

	// TEMPO_UDP_ENABLED
	if val, ok := os.LookupEnv("TEMPO_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	// TEMPO_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("TEMPO_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	// TEMPO_POLL_INTERVAL
	if val, ok := os.LookupEnv("TEMPO_POLL_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.PollInterval = dur
		}
	}

	// TEMPO_MQTT_{...}

	// TEMPO_MQTT_ENABLED
	if val, ok := os.LookupEnv("TEMPO_MQTT_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.MQTTEnabled = bVal
		}
	}
	// TEMPO_MQTT_BROKER
	if val, ok := os.LookupEnv("TEMPO_MQTT_BROKER"); ok {
		cfg.Transport.MQTTBroker = val
	}

	// TEMPO_METRICS_ENABLED
	if val, ok := os.LookupEnv("TEMPO_METRICS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = bVal
		}
	}
}
