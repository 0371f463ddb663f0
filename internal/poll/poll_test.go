package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestTwoTier_SwitchesExactlyOnce(t *testing.T) {
	s := TwoTier{Initial: 5 * time.Second, Switch: 6, Later: 15 * time.Second}

	var got []time.Duration
	for i := range 20 {
		got = append(got, s.Interval(i))
	}

	changes := 0
	for i := 1; i < len(got); i++ {
		if got[i] != got[i-1] {
			changes++
		}
	}
	assert.Equal(t, 1, changes)
	for i := range 6 {
		assert.Equal(t, 5*time.Second, got[i])
	}
	for i := 6; i < 20; i++ {
		assert.Equal(t, 15*time.Second, got[i])
	}
}

func TestFixed(t *testing.T) {
	s := Fixed(3 * time.Second)
	assert.Equal(t, 3*time.Second, s.Interval(0))
	assert.Equal(t, 3*time.Second, s.Interval(100))
}

// stepper advances the fake clock whenever the poller is waiting on it.
func stepper(t *testing.T, clk *clocktesting.FakeClock, d time.Duration, steps int) {
	t.Helper()
	for range steps {
		require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
		clk.Step(d)
	}
}

func TestPoller_StopsOnTerminal(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	statuses := []string{"pending", "running", "running", "completed"}

	var mu sync.Mutex
	calls := 0
	var seen []int
	p := &Poller[string]{
		Fetch: func(context.Context) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			s := statuses[calls]
			calls++
			return s, nil
		},
		IsTerminal: func(s string) bool { return s == "completed" || s == "failed" },
		Schedule:   Fixed(3 * time.Second),
		OnResult:   func(seq int, _ string) { seen = append(seen, seq) },
		Clock:      clk,
	}

	done := make(chan string, 1)
	go func() {
		v, err := p.Run(context.Background())
		assert.NoError(t, err)
		done <- v
	}()

	stepper(t, clk, 3*time.Second, len(statuses))
	select {
	case v := <-done:
		assert.Equal(t, "completed", v)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.False(t, clk.HasWaiters())
}

func TestPoller_StopsOnFailed(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	p := &Poller[string]{
		Fetch:      func(context.Context) (string, error) { return "failed", nil },
		IsTerminal: func(s string) bool { return s == "completed" || s == "failed" },
		Schedule:   Fixed(time.Second),
		Clock:      clk,
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()
	stepper(t, clk, time.Second, 1)
	require.NoError(t, <-done)
}

func TestPoller_SwallowsFetchErrors(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	var mu sync.Mutex
	calls := 0
	p := &Poller[string]{
		Fetch: func(context.Context) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls < 3 {
				return "", errors.New("Network error")
			}
			return "completed", nil
		},
		IsTerminal: func(s string) bool { return s == "completed" },
		Schedule:   Fixed(3 * time.Second),
		Clock:      clk,
	}

	done := make(chan string, 1)
	go func() {
		v, _ := p.Run(context.Background())
		done <- v
	}()
	stepper(t, clk, 3*time.Second, 3)
	assert.Equal(t, "completed", <-done)
	assert.Equal(t, 3, calls)
}

func TestPoller_TwoTierWaits(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	start := clk.Now()
	var mu sync.Mutex
	var at []time.Duration
	p := &Poller[int]{
		Fetch: func(context.Context) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			at = append(at, clk.Since(start))
			return len(at), nil
		},
		IsTerminal: func(n int) bool { return n == 8 },
		Schedule:   TwoTier{Initial: 5 * time.Second, Switch: 6, Later: 15 * time.Second},
		Clock:      clk,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run(context.Background())
	}()

	// A 5s step never satisfies a 15s timer, so each tier needs its own step size.
	stepper(t, clk, 5*time.Second, 6)
	stepper(t, clk, 15*time.Second, 2)
	<-done

	want := []time.Duration{5, 10, 15, 20, 25, 30, 45, 60}
	require.Len(t, at, len(want))
	for i, w := range want {
		assert.Equal(t, w*time.Second, at[i], "poll %d", i+1)
	}
}

func TestPoller_Cancel(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	p := &Poller[string]{
		Fetch:      func(context.Context) (string, error) { return "running", nil },
		IsTerminal: func(string) bool { return false },
		Schedule:   Fixed(time.Second),
		Clock:      clk,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx)
		done <- err
	}()
	stepper(t, clk, time.Second, 2)
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}
