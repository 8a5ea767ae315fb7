// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"tempo/internal/beat"
	applog "tempo/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FileBackend plays a WAV file into the tracker as if it were a capture
// device. Multi-channel files are down-mixed to mono.
type FileBackend struct {
	path     string
	realtime bool
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend reads path. With realtime set, hops are delivered at the
// pace of the file's sample rate, otherwise as fast as they decode.
func NewFileBackend(path string, realtime bool) *FileBackend {
	return &FileBackend{path: path, realtime: realtime}
}

func (b *FileBackend) Initialize() error { return nil }

func (b *FileBackend) Terminate() error { return nil }

// WAVInfo describes a WAV file.
type WAVInfo struct {
	SampleRate  float64
	NumChannels int
	BitDepth    int
}

// ProbeWAV reads the header of the WAV file at path.
func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	decoder, err := openDecoder(f)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return WAVInfo{
		SampleRate:  float64(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
	}, nil
}

func openDecoder(f *os.File) (*wav.Decoder, error) {
	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}
	if _, err := sampleDivisor(int(decoder.BitDepth)); err != nil {
		return nil, err
	}
	if decoder.NumChans == 0 {
		return nil, errors.New("WAV file has no channels")
	}
	return decoder, nil
}

// sampleDivisor returns the full-scale value of a PCM sample.
func sampleDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

func (b *FileBackend) OpenInputStream(p StreamParams, process func([]float32)) (Stream, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, err
	}

	decoder, err := openDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", b.path, err)
	}
	if float64(decoder.SampleRate) != p.SampleRate {
		f.Close()
		return nil, fmt.Errorf("%s: sample rate %d Hz does not match stream rate %.0f Hz",
			b.path, decoder.SampleRate, p.SampleRate)
	}

	divisor, _ := sampleDivisor(int(decoder.BitDepth))
	channels := int(decoder.NumChans)

	applog.Infof("Audio: Playing %s (%d ch, %d Hz, %d bit, realtime %v)",
		b.path, channels, decoder.SampleRate, decoder.BitDepth, b.realtime)

	return &fileStream{
		file:     f,
		decoder:  decoder,
		channels: channels,
		divisor:  divisor,
		realtime: b.realtime,
		interval: time.Duration(float64(p.FramesPerBuffer) / p.SampleRate * float64(time.Second)),
		buf: &goaudio.IntBuffer{
			Data:   make([]int, p.FramesPerBuffer*channels),
			Format: &goaudio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
		},
		mono:     make([]float32, p.FramesPerBuffer),
		rebuffer: beat.NewRebuffer(p.FramesPerBuffer, process),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// fileStream delivers decoded hops from a producer goroutine.
type fileStream struct {
	file     *os.File
	decoder  *wav.Decoder
	channels int
	divisor  float32
	realtime bool
	interval time.Duration

	buf      *goaudio.IntBuffer
	mono     []float32
	rebuffer *beat.Rebuffer

	mu        sync.Mutex
	started   bool
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	err       error // Read error, valid after done is closed
}

func (s *fileStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("stream already started")
	}
	select {
	case <-s.stop:
		return errors.New("stream aborted")
	default:
	}
	s.started = true
	go s.run()
	return nil
}

func (s *fileStream) run() {
	defer close(s.done)

	var ticker *time.Ticker
	if s.realtime {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		n, err := s.decoder.PCMBuffer(s.buf)
		if err != nil {
			s.err = err
			applog.Warnf("Audio: Reading %s failed: %v", s.file.Name(), err)
			return
		}
		if n == 0 {
			applog.Debugf("Audio: Reached end of %s", s.file.Name())
			return
		}

		frames := n / s.channels
		for i := range frames {
			var sum float32
			for c := range s.channels {
				sum += float32(s.buf.Data[i*s.channels+c]) / s.divisor
			}
			s.mono[i] = sum / float32(s.channels)
		}
		s.rebuffer.Write(s.mono[:frames])

		if ticker != nil {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}
}

// Abort stops playback and waits for the producer goroutine to exit.
func (s *fileStream) Abort() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
	return nil
}

func (s *fileStream) Close() error {
	s.closeOnce.Do(func() {
		s.Abort()
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}

// Done is closed once the whole file has been delivered or playback was
// aborted.
func (s *fileStream) Done() <-chan struct{} {
	return s.done
}

// Err returns the read error that ended playback early, if any. Only valid
// after Done is closed.
func (s *fileStream) Err() error {
	return s.err
}
