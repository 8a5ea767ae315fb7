// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"tempo/internal/beat"
	applog "tempo/internal/log"

	"github.com/gen2brain/malgo"
)

// MalgoBackend captures through miniaudio. It picks the platform's default
// capture device and context backend.
type MalgoBackend struct {
	ctx *malgo.AllocatedContext
}

var _ Backend = (*MalgoBackend)(nil)

func NewMalgoBackend() *MalgoBackend {
	return &MalgoBackend{}
}

func (b *MalgoBackend) Initialize() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		applog.Debugf("malgo: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return err
	}
	b.ctx = ctx
	return nil
}

func (b *MalgoBackend) Terminate() error {
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

// OpenInputStream initializes a float32 capture device. miniaudio may deliver
// periods of any length, so samples go through a beat.Rebuffer.
func (b *MalgoBackend) OpenInputStream(p StreamParams, process func([]float32)) (Stream, error) {
	if b.ctx == nil {
		return nil, errors.New("malgo context not initialized")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(p.Channels)
	deviceConfig.SampleRate = uint32(p.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(p.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	s := &malgoStream{
		channels: p.Channels,
		scratch:  make([]float32, p.FramesPerBuffer),
		rebuffer: beat.NewRebuffer(p.FramesPerBuffer, process),
	}

	device, err := malgo.InitDevice(b.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		return nil, err
	}
	s.device = device

	applog.Infof("Audio: Opened miniaudio capture device (%d ch, %d Hz, period %d frames)",
		device.CaptureChannels(), device.SampleRate(), p.FramesPerBuffer)
	return s, nil
}

type malgoStream struct {
	device   *malgo.Device
	channels int
	scratch  []float32 // Decoded mono samples
	rebuffer *beat.Rebuffer
}

// onData decodes interleaved little-endian float32 frames, down-mixing to
// mono, in chunks of at most len(scratch) frames.
func (s *malgoStream) onData(_, in []byte, frameCount uint32) {
	stride := 4 * s.channels
	frames := min(int(frameCount), len(in)/stride)

	for frames > 0 {
		n := min(frames, len(s.scratch))
		for i := range n {
			var sum float32
			for c := range s.channels {
				off := i*stride + c*4
				sum += math.Float32frombits(binary.LittleEndian.Uint32(in[off:]))
			}
			s.scratch[i] = sum / float32(s.channels)
		}
		s.rebuffer.Write(s.scratch[:n])
		in = in[n*stride:]
		frames -= n
	}
}

func (s *malgoStream) Start() error { return s.device.Start() }

// Abort stops the device; miniaudio waits for the in-flight callback.
func (s *malgoStream) Abort() error { return s.device.Stop() }

func (s *malgoStream) Close() error {
	s.device.Uninit()
	return nil
}
