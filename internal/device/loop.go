package device

import (
	"context"
	"log/slog"
	"time"
)

// TickFunc is called by the Loop once per tick.
type TickFunc func(now time.Time)

// Loop is the device's single cooperative execution context. One goroutine
// runs it; it calls the TickFunc at a steady interval and, between ticks,
// runs closures submitted by other goroutines through Do. Everything the
// TickFunc touches is therefore only ever used from one goroutine, without
// locks.
type Loop struct {
	interval time.Duration
	tick     TickFunc
	ops      chan func()
	logger   *slog.Logger
}

// NewLoop returns a Loop calling tick every interval.
func NewLoop(interval time.Duration, tick TickFunc, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		interval: interval,
		tick:     tick,
		ops:      make(chan func()),
		logger:   logger,
	}
}

// Run drives the loop until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			l.tick(now)
		case op := <-l.ops:
			op()
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to finish. It returns
// ctx.Err() if ctx ends first; fn may still run later in that case.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}

	select {
	case l.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
