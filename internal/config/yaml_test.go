// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate || cfg.Audio.HopSize != DefaultHopSize || cfg.Audio.FrameSize != DefaultFrameSize {
		t.Errorf("expected 44100/512/1024 defaults, got %+v", cfg.Audio)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  backend: malgo
  sample_rate: 48000
  hop_size: 256
  frame_size: 2048
analysis:
  engine: energy
  max_bpm: 180
transport:
  poll_interval: 50ms
  websocket_enabled: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Audio.Backend != BackendMalgo || cfg.Audio.SampleRate != 48000 {
		t.Errorf("audio section not applied: %+v", cfg.Audio)
	}
	if cfg.Audio.HopSize != 256 || cfg.Audio.FrameSize != 2048 {
		t.Errorf("framing not applied: hop=%d frame=%d", cfg.Audio.HopSize, cfg.Audio.FrameSize)
	}
	if cfg.Analysis.Engine != EngineEnergy || cfg.Analysis.MaxBPM != 180 || cfg.Analysis.MinBPM != DefaultMinBPM {
		t.Errorf("analysis section not merged with defaults: %+v", cfg.Analysis)
	}
	if cfg.Transport.PollInterval != 50*time.Millisecond || !cfg.Transport.WebSocketEnabled {
		t.Errorf("transport section not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.WebSocketAddress != DefaultWebSocketAddress {
		t.Errorf("websocket address default lost: %q", cfg.Transport.WebSocketAddress)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TEMPO_AUDIO_SAMPLE_RATE", "48000")
	t.Setenv("TEMPO_UDP_ENABLED", "true")
	t.Setenv("TEMPO_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("TEMPO_POLL_INTERVAL", "10ms")
	t.Setenv("TEMPO_MQTT_ENABLED", "true")
	t.Setenv("TEMPO_MQTT_BROKER", "tcp://broker.lan:1883")

	path := writeTempConfig(t, "audio:\n  sample_rate: 22050\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("env sample rate not applied, got %.0f", cfg.Audio.SampleRate)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("env UDP overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.PollInterval != 10*time.Millisecond {
		t.Errorf("env poll interval not applied: %v", cfg.Transport.PollInterval)
	}
	if !cfg.Transport.MQTTEnabled || cfg.Transport.MQTTBroker != "tcp://broker.lan:1883" {
		t.Errorf("env MQTT overrides not applied: %+v", cfg.Transport)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"Hop larger than frame", func(c *Config) { c.Audio.HopSize = 2048 }, "audio.hop_size"},
		{"Zero hop", func(c *Config) { c.Audio.HopSize = 0 }, "audio.hop_size"},
		{"Frame not power of two", func(c *Config) { c.Audio.FrameSize = 1000 }, "try 1024"},
		{"Frame too large", func(c *Config) { c.Audio.FrameSize = 16384 }, "exceeds"},
		{"Sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }, "audio.sample_rate"},
		{"Unknown backend", func(c *Config) { c.Audio.Backend = "jack" }, "audio.backend"},
		{"File backend without file", func(c *Config) { c.Audio.Backend = BackendFile }, "audio.input_file"},
		{"Bad device", func(c *Config) { c.Audio.InputDevice = -2 }, "audio.input_device"},
		{"Unknown engine", func(c *Config) { c.Analysis.Engine = "neural" }, "analysis.engine"},
		{"Inverted tempo range", func(c *Config) { c.Analysis.MinBPM = 200; c.Analysis.MaxBPM = 100 }, "tempo range"},
		{"Zero poll interval", func(c *Config) { c.Transport.PollInterval = 0 }, "poll_interval"},
		{"UDP without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "missing port"},
		{"MQTT broker without scheme", func(c *Config) {
			c.Transport.MQTTEnabled = true
			c.Transport.MQTTBroker = "localhost"
		}, "transport.mqtt_broker"},
		{"MQTT without topic", func(c *Config) {
			c.Transport.MQTTEnabled = true
			c.Transport.MQTTTopic = ""
		}, "transport.mqtt_topic"},
		{"Metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, "metrics.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestHopSeconds(t *testing.T) {
	cfg := NewConfig()
	want := 512.0 / 44100.0
	if got := cfg.HopSeconds(); got != want {
		t.Errorf("HopSeconds() = %v, want %v", got, want)
	}

	cfg.Audio.SampleRate = 0
	if got := cfg.HopSeconds(); got != 0 {
		t.Errorf("HopSeconds() with zero rate = %v, want 0", got)
	}
}
