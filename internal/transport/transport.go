// SPDX-License-Identifier: MIT
//
// Package transport delivers tracker readings to consumers outside the
// process: logs, WebSocket clients, UDP listeners and metrics.
package transport

import "tempo/internal/beat"

// Transport defines a generic interface for sending readings.
// Implementations should be thread-safe.
type Transport interface {
	Send(r beat.Reading) error
	Close() error
}

// Source is polled for readings. *audio.Session satisfies it.
type Source interface {
	Poll() beat.Reading
}
