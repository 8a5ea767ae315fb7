// Package utils holds synthetic signals and test doubles shared by the
// package tests.
package utils

import (
	"math"
	"sync"

	"tempo/internal/beat"
)

// ClickLength is the duration of one synthetic click in seconds.
const ClickLength = 0.005

// GenerateClickTrack returns size mono samples containing a short decaying
// 1 kHz click at every beat of a metronome running at bpm, the first beat on
// sample 0.
func GenerateClickTrack(size int, sampleRate, bpm float64) []float32 {
	buffer := make([]float32, size)
	period := 60 / bpm * sampleRate
	clickSamples := int(ClickLength * sampleRate)

	for start := 0.0; int(start) < size; start += period {
		first := int(start)
		for i := 0; i < clickSamples && first+i < size; i++ {
			tm := float64(i) / sampleRate
			buffer[first+i] = float32(0.8 * math.Exp(-tm/0.002) * math.Sin(2*math.Pi*1000*tm))
		}
	}
	return buffer
}

// GenerateSineWave returns size samples of a 0.9 amplitude sine at frequency.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// SplitHops cuts samples into consecutive hop sized blocks, dropping a
// trailing partial hop.
func SplitHops(samples []float32, hop int) [][]float32 {
	hops := make([][]float32, 0, len(samples)/hop)
	for i := 0; i+hop <= len(samples); i += hop {
		hops = append(hops, samples[i:i+hop])
	}
	return hops
}

// MockTransport records every reading it is sent.
type MockTransport struct {
	mu       sync.Mutex
	readings []beat.Reading
	closed   bool
}

// Send stores the reading for later inspection instead of transmitting.
func (m *MockTransport) Send(r beat.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, r)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Readings returns a copy of everything sent so far.
func (m *MockTransport) Readings() []beat.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]beat.Reading(nil), m.readings...)
}

// TotalBeats sums the beat counts of every reading sent so far.
func (m *MockTransport) TotalBeats() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total uint64
	for _, r := range m.readings {
		total += r.Beats
	}
	return total
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
