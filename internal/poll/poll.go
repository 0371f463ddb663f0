// Package poll repeatedly fetches a value on a schedule until it settles.
package poll

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/logging"
)

// Schedule decides how long to wait before the next fetch.
type Schedule interface {
	// Interval returns the wait before the next fetch given how many fetches completed so far.
	Interval(completedPolls int) time.Duration
}

// Fixed waits the same duration before every fetch.
type Fixed time.Duration

func (f Fixed) Interval(int) time.Duration { return time.Duration(f) }

// TwoTier waits Initial until Switch fetches have completed, then Later for good.
type TwoTier struct {
	Initial time.Duration
	Switch  int
	Later   time.Duration
}

func (t TwoTier) Interval(completedPolls int) time.Duration {
	if completedPolls < t.Switch {
		return t.Initial
	}
	return t.Later
}

// Poller runs Fetch on Schedule until IsTerminal accepts a result or the context ends.
type Poller[T any] struct {
	Fetch      func(ctx context.Context) (T, error)
	IsTerminal func(T) bool
	Schedule   Schedule
	// OnResult sees every successful fetch in order. seq starts at 1.
	OnResult func(seq int, v T)
	Clock    clock.Clock
	Logger   *slog.Logger
	// Name labels log lines.
	Name string
}

// Run waits one interval before the first fetch. Fetch errors are logged and do not
// advance the schedule. It returns the terminal value, or the zero value and ctx.Err()
// when cancelled first.
func (p *Poller[T]) Run(ctx context.Context) (T, error) {
	var zero T
	clk := p.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := logging.OrDiscard(p.Logger)

	completed := 0
	seq := 0
	for {
		interval := p.Schedule.Interval(completed)
		timer := clk.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C():
		}

		v, err := p.Fetch(ctx)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if err != nil {
			logger.Warn("poll failed, retrying", "poller", p.Name, "polls", completed, "interval", interval, "error", err)
			continue
		}
		completed++
		seq++
		if p.OnResult != nil {
			p.OnResult(seq, v)
		}
		if p.IsTerminal != nil && p.IsTerminal(v) {
			logger.Debug("poll settled", "poller", p.Name, "polls", completed)
			return v, nil
		}
	}
}
