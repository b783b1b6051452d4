package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer keeps at least Interval between the end of one outbound call and the
// start of the next. Callers Wait before a call and report Done after it. The
// first call never waits.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// New constructs a Pacer. A non-positive interval disables pacing.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{interval: interval, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Interval returns the configured spacing.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Done marks the end of a call so the next Wait pauses a full interval from
// now, however long the call itself took.
func (p *Pacer) Done() {
	if p == nil || p.limiter == nil || p.interval <= 0 {
		return
	}
	now := time.Now()
	// Dropping the burst to zero discards any token that accrued during the
	// call; restoring it leaves the bucket empty as of now.
	p.limiter.SetBurstAt(now, 0)
	p.limiter.SetBurstAt(now, 1)
}

// Sleep blocks for d, returning early with the context error if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
