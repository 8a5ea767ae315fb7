// SPDX-License-Identifier: MIT
package audio

import (
	applog "tempo/internal/log"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend captures from a PortAudio input device.
type PortAudioBackend struct {
	deviceID   int
	lowLatency bool
}

var _ Backend = (*PortAudioBackend)(nil)

func NewPortAudioBackend(deviceID int, lowLatency bool) *PortAudioBackend {
	return &PortAudioBackend{deviceID: deviceID, lowLatency: lowLatency}
}

func (b *PortAudioBackend) Initialize() error { return Initialize() }

func (b *PortAudioBackend) Terminate() error { return Terminate() }

// OpenInputStream opens a callback stream on the configured device. PortAudio
// delivers exactly FramesPerBuffer frames per callback, so process is
// registered directly.
func (b *PortAudioBackend) OpenInputStream(p StreamParams, process func([]float32)) (Stream, error) {
	device, err := InputDevice(b.deviceID)
	if err != nil {
		return nil, err
	}

	latency := device.DefaultHighInputLatency
	if b.lowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: p.Channels,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: p.FramesPerBuffer,
		SampleRate:      p.SampleRate,
	}

	applog.Infof("Audio: Opening %s (%d ch, %.0f Hz, %d frames, latency %v)",
		device.Name, p.Channels, p.SampleRate, p.FramesPerBuffer, latency)

	stream, err := portaudio.OpenStream(params, process)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
