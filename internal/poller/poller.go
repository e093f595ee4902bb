// Package poller implements the recurring per-entity refresh timer.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// UpdateFunc forces a refresh of the owning entity and propagates its state to the host.
// Error handling belongs to the host's state-update pathway, not to the poller.
type UpdateFunc func(ctx context.Context)

// Poller owns a single recurring timer. Start replaces any running timer, Stop is idempotent.
type Poller struct {
	clock  clockwork.Clock
	update UpdateFunc
	log    *logrus.Entry

	mu       sync.Mutex
	interval time.Duration
	ticker   clockwork.Ticker
	cancel   context.CancelFunc
}

func New(clock clockwork.Clock, update UpdateFunc, log *logrus.Entry) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		clock:  clock,
		update: update,
		log:    log,
	}
}

// Start arms the timer with the given interval, stopping the previous one first.
func (p *Poller) Start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	ticker := p.clock.NewTicker(interval)
	p.interval = interval
	p.ticker = ticker
	p.cancel = cancel

	p.log.WithFields(logrus.Fields{
		"interval":  interval.String(),
		"next_call": p.clock.Now().Add(interval).Format(time.RFC3339),
	}).Debug("Starting updater")

	go p.run(ctx, ticker)
}

// Stop cancels the timer if armed.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.ticker == nil {
		return
	}
	p.log.Debug("Stopping updater")
	p.ticker.Stop()
	p.cancel()
	p.ticker = nil
	p.cancel = nil
}

// ExecuteNow stops the timer, runs one forced update synchronously and rearms the timer,
// also when it was never started. A non-positive interval reuses the last one.
func (p *Poller) ExecuteNow(ctx context.Context, interval time.Duration) {
	p.mu.Lock()
	if interval <= 0 {
		interval = p.interval
	}
	p.stopLocked()
	p.mu.Unlock()

	if interval > 0 {
		defer p.Start(interval)
	}
	p.update(ctx)
}

// Running reports whether a timer is armed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

// Interval returns the interval of the last Start call.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) run(ctx context.Context, ticker clockwork.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// a stop may race with a pending tick
			if ctx.Err() != nil {
				return
			}
			p.log.Debug("Executing planned update task")
			pollTicks.Inc()
			p.update(context.WithoutCancel(ctx))
		}
	}
}
