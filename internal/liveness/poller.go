// Package liveness polls a health endpoint and tracks a tri-state status.
package liveness

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
)

type Poller struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPoller(prober Prober, opts ...Option) *Poller {
	p := &Poller{
		prober:   prober,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Handle controls one running poll loop.
type Handle struct {
	status  atomic.Int32
	updates chan Status
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start launches the poll loop. The first probe fires immediately; each
// following probe is scheduled interval after the previous one finished,
// so probes never overlap. The loop ends when ctx is cancelled or Stop is
// called.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		updates: make(chan Status, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	h.status.Store(int32(Checking))
	go p.run(ctx, h)
	return h
}

// Status returns the most recently published status.
func (h *Handle) Status() Status { return Status(h.status.Load()) }

// Updates delivers status changes. It holds at most the newest value and
// is closed once the loop has exited.
func (h *Handle) Updates() <-chan Status { return h.updates }

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stop cancels the pending timer or probe and waits for the loop to exit.
// It is safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer close(h.updates)
	for {
		if ctx.Err() != nil {
			return
		}
		p.cycle(ctx, h)
		if !sleep(ctx, p.interval) {
			return
		}
	}
}

func (p *Poller) cycle(ctx context.Context, h *Handle) {
	h.publish(Checking)
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	start := time.Now()
	err := p.prober.Probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Warn("health probe failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		h.publish(Unhealthy)
		return
	}
	p.logger.Debug("health probe ok", zap.Duration("elapsed", time.Since(start)))
	h.publish(Healthy)
}

func (h *Handle) publish(s Status) {
	h.status.Store(int32(s))
	select {
	case h.updates <- s:
		return
	default:
	}
	// Replace the unread value with the newer one.
	select {
	case <-h.updates:
	default:
	}
	select {
	case h.updates <- s:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
