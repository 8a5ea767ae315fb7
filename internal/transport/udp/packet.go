// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"tempo/internal/beat"
	applog "tempo/internal/log"
	"tempo/internal/transport"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------+
| Field           | Data Type | Size (Bytes) | Description               |
|-----------------|-----------|--------------|---------------------------|
| Sequence Number | uint32    | 4            | Monotonically increasing  |
| Timestamp       | int64     | 8            | Nanoseconds since epoch   |
| BPM             | float32   | 4            | Latest tempo, 0 = unknown |
| Loudness        | float32   | 4            | Frame RMS                 |
| Beats           | uint32    | 4            | Beats since last packet   |
+------------------------------------------------------------------------+
*/

// PacketSize is the encoded size of a Packet.
const PacketSize = 24

// Packet is one reading on the wire.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	BPM       float32
	Loudness  float32
	Beats     uint32
}

// Marshal encodes p into dst, which must hold PacketSize bytes.
func (p Packet) Marshal(dst []byte) {
	_ = dst[PacketSize-1]
	binary.BigEndian.PutUint32(dst[0:], p.Sequence)
	binary.BigEndian.PutUint64(dst[4:], uint64(p.Timestamp))
	binary.BigEndian.PutUint32(dst[12:], math.Float32bits(p.BPM))
	binary.BigEndian.PutUint32(dst[16:], math.Float32bits(p.Loudness))
	binary.BigEndian.PutUint32(dst[20:], p.Beats)
}

// Unmarshal decodes a packet, as a receiver would.
func Unmarshal(b []byte) (Packet, error) {
	if len(b) != PacketSize {
		return Packet{}, fmt.Errorf("packet is %d bytes, want %d", len(b), PacketSize)
	}
	return Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:])),
		BPM:       math.Float32frombits(binary.BigEndian.Uint32(b[12:])),
		Loudness:  math.Float32frombits(binary.BigEndian.Uint32(b[16:])),
		Beats:     binary.BigEndian.Uint32(b[20:]),
	}, nil
}

// Transport sends every reading as a Packet.
type Transport struct {
	sender *Sender

	mu       sync.Mutex // Serializes sequence and buf
	sequence uint32
	buf      [PacketSize]byte
}

func NewTransport(targetAddress string) (*Transport, error) {
	sender, err := NewSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return &Transport{sender: sender}, nil
}

func (t *Transport) Send(r beat.Reading) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	t.sequence++
	Packet{
		Sequence:  t.sequence,
		Timestamp: ts.UnixNano(),
		BPM:       float32(r.BPM),
		Loudness:  float32(r.Loudness),
		Beats:     uint32(min(r.Beats, math.MaxUint32)),
	}.Marshal(t.buf[:])

	if err := t.sender.Send(t.buf[:]); err != nil {
		return err
	}
	applog.Debugf("UDP Transport: Sent packet %d", t.sequence)
	return nil
}

func (t *Transport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*Transport)(nil)
