// SPDX-License-Identifier: MIT
/*
Package beat implements the producer side of the real-time tempo pipeline:
- Sliding-window frame assembly, one hop at a time
- Windowed RMS loudness
- Per-hop beat detection through a pluggable Detector
- Hop-distance tempo estimation
- Lock-free publication of results to polling consumers

Thread Safety:
- Frame, Rebuffer, TempoTracker and Processor belong to the audio callback
  thread and are never shared
- Results is the only type touched by both the callback and consumers; every
  field is a sync/atomic value
- Nothing on the hop path allocates, locks or logs
*/
package beat
