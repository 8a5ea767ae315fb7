// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
	"time"

	applog "tempo/internal/log"
)

// DefaultInterval is used when a Publisher is given no usable interval.
const DefaultInterval = 33 * time.Millisecond

// Publisher periodically polls a Source and fans every reading out to its
// transports. It is the single consumer of the source's pending beats; it
// runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	source     Source
	transports []Transport
	interval   time.Duration

	ticker   *time.Ticker   // Ticker that triggers a poll.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	published uint64 // Readings fanned out, owned by the publisher goroutine
}

// NewPublisher creates a Publisher. If interval is not positive it defaults
// to DefaultInterval.
func NewPublisher(source Source, interval time.Duration, transports ...Transport) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("Publisher: Initializing (Interval: %s, Transports: %d)", interval, len(transports))

	return &Publisher{
		source:     source,
		transports: transports,
		interval:   interval,
	}
}

// Start begins the periodic publishing process. It is safe to call Start
// multiple times; subsequent calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("Publisher: Goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				// Final poll so beats detected since the last tick are delivered.
				p.publish()
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("Publisher: Stopped after %d readings", p.published)
	return nil
}

// publish polls once and sends the reading to every transport. A failing
// transport does not keep the others from receiving it.
func (p *Publisher) publish() {
	r := p.source.Poll()
	p.published++
	for _, t := range p.transports {
		if err := t.Send(r); err != nil {
			applog.Debugf("Publisher: Send via %T failed: %v", t, err)
		}
	}
}

// Close stops publishing and closes every transport.
func (p *Publisher) Close() error {
	p.Stop()

	var errs []error
	for _, t := range p.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
