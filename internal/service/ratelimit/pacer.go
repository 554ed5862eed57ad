package ratelimit

import (
	"context"
	"time"

	"TrendWatch/internal/domain/service"
)

// Token marks the start of a paced unit of work.
type Token struct {
	start time.Time
}

// Pacer enforces a minimum wall-clock duration per unit of work.
type Pacer struct {
	MinDuration time.Duration
	Clock       service.Clock
}

// NewPacer creates a pacer. A nil clock means the system clock.
func NewPacer(min time.Duration, clock service.Clock) *Pacer {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &Pacer{MinDuration: min, Clock: clock}
}

// Start begins a unit of work.
func (p *Pacer) Start() Token {
	return Token{start: p.Clock.Now()}
}

// Remaining returns how much longer the unit must last.
func (p *Pacer) Remaining(t Token) time.Duration {
	rem := p.MinDuration - p.Clock.Now().Sub(t.start)
	if rem < 0 {
		return 0
	}
	return rem
}

// Wait sleeps for the remaining part of the minimum duration.
func (p *Pacer) Wait(ctx context.Context, t Token) error {
	rem := p.Remaining(t)
	if rem == 0 {
		return nil
	}
	return p.Clock.Sleep(ctx, rem)
}
