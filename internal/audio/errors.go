// SPDX-License-Identifier: MIT
package audio

import "errors"

// Lifecycle errors. Failures returned by Tracker.Start and Tracker.Stop wrap
// one or more of these, so callers can test them with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInitialize    = errors.New("failed to initialize audio subsystem")
	ErrOpenStream    = errors.New("failed to open input stream")
	ErrStartStream   = errors.New("failed to start input stream")
	ErrAbortStream   = errors.New("failed to abort input stream")
	ErrCloseStream   = errors.New("failed to close input stream")
	ErrTerminate     = errors.New("failed to terminate audio subsystem")
)
