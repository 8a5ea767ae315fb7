// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func setupPortAudio(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := Terminate(); err != nil {
			t.Fatalf("Failed to terminate PortAudio: %v", err)
		}
	})
}

// mockDevices replaces the PortAudio device list for the duration of a test.
func mockDevices(t *testing.T, infos []*portaudio.DeviceInfo, defaultInput *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if defaultInput == nil {
			return nil, fmt.Errorf("no default input device")
		}
		return defaultInput, nil
	}
}

var (
	mic = &portaudio.DeviceInfo{
		Name:                    "Built-in Microphone",
		MaxInputChannels:        2,
		DefaultSampleRate:       44100,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
	}
	speakers = &portaudio.DeviceInfo{
		Name:              "Built-in Output",
		MaxOutputChannels: 2,
		DefaultSampleRate: 48000,
	}
	interfaceIO = &portaudio.DeviceInfo{
		Name:              "USB Interface",
		MaxInputChannels:  4,
		MaxOutputChannels: 4,
		DefaultSampleRate: 96000,
	}
)

func TestHostDevices(t *testing.T) {
	setupPortAudio(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No audio devices found on system")
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
		if d.DefaultSampleRate <= 0 {
			t.Errorf("Device %d has invalid sample rate: %f", i, d.DefaultSampleRate)
		}
	}
}

func TestHostDevicesMocked(t *testing.T) {
	mockDevices(t, []*portaudio.DeviceInfo{mic, speakers, interfaceIO}, mic)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	want := []string{"Input", "Output", "Input/Output"}
	if len(devices) != len(want) {
		t.Fatalf("got %d devices, want %d", len(devices), len(want))
	}
	for i, d := range devices {
		if d.ID != i || d.Kind() != want[i] {
			t.Errorf("device %d = {ID %d, Kind %q}, want {ID %d, Kind %q}", i, d.ID, d.Kind(), i, want[i])
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	mockDevices(t, []*portaudio.DeviceInfo{mic, speakers, interfaceIO}, mic)

	tests := []struct {
		name   string
		id     int
		want   *portaudio.DeviceInfo
		substr string
	}{
		{"Default device", -1, mic, ""},
		{"Valid input device", 2, interfaceIO, ""},
		{"Negative ID", -2, nil, "invalid device ID"},
		{"Too high ID", 13, nil, "invalid device ID"},
		{"Non-input device", 1, nil, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.id)
			if tt.substr == "" {
				if err != nil {
					t.Fatalf("InputDevice(%d) error: %v", tt.id, err)
				}
				if dev != tt.want {
					t.Errorf("InputDevice(%d) = %s, want %s", tt.id, dev.Name, tt.want.Name)
				}
				return
			}
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	mockDevices(t, []*portaudio.DeviceInfo{speakers}, nil)

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "no default input device") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	mockDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
	if len(devices) != 0 {
		t.Errorf("expected length 0, got %d", len(devices))
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	mockDevices(t, []*portaudio.DeviceInfo{mic, speakers}, mic)

	var out bytes.Buffer
	if err := ListDevices(&out); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}

	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Built-in Output (Output)",
		"Default sample rate: 48000 Hz",
		"Latency: Low=3.00ms, High=12.00ms",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPortAudioBackendUnknownDevice(t *testing.T) {
	mockDevices(t, []*portaudio.DeviceInfo{speakers}, nil)

	b := NewPortAudioBackend(0, false)
	_, err := b.OpenInputStream(StreamParams{Channels: 1, SampleRate: 44100, FramesPerBuffer: 512}, func([]float32) {})
	if err == nil || !strings.Contains(err.Error(), "does not support input") {
		t.Errorf("expected input support error, got %v", err)
	}
}

func TestGetInputDevices(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })
	var terminated bool
	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error {
		terminated = true
		return nil
	}
	mockDevices(t, []*portaudio.DeviceInfo{mic, speakers, interfaceIO}, mic)

	devices, err := GetInputDevices()
	if err != nil {
		t.Fatalf("GetInputDevices error: %v", err)
	}
	if len(devices) != 2 || devices[0].ID != 0 || devices[1].ID != 2 {
		t.Errorf("got %+v, want devices 0 and 2", devices)
	}
	if !terminated {
		t.Error("PortAudio was not terminated")
	}

	paLibInitialize = func() error { return fmt.Errorf("no audio server") }
	if _, err := GetInputDevices(); err == nil || !strings.Contains(err.Error(), "no audio server") {
		t.Errorf("expected init error, got %v", err)
	}
}
