package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *Breaker {
	return New(Config{
		FailureThreshold:  5,
		FailureRatio:      0.6,
		MinimumThroughput: 10,
		SamplingWindow:    time.Minute,
		CoolDown:          30 * time.Second,
		Now:               clock.Now,
	})
}

func run(b *Breaker, err error) (called bool, result error) {
	result = b.Execute(context.Background(), func() error {
		called = true
		return err
	})
	return called, result
}

func TestBreaker_StaysClosedBelowMinimumThroughput(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)

	for range 5 {
		run(b, errBackend)
	}
	if b.State() != StateClosed {
		t.Fatalf("State() = %s after 5 failures below throughput floor, want closed", b.State())
	}
}

func TestBreaker_OpensWhenThroughputAndRatioExceeded(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)

	for range 5 {
		run(b, errBackend)
	}
	for range 3 {
		run(b, nil)
	}
	run(b, errBackend)
	if b.State() != StateClosed {
		t.Fatalf("State() = %s with 9 samples, want closed", b.State())
	}
	run(b, errBackend) // 10 samples, 7 failures, ratio 0.7

	if b.State() != StateOpen {
		t.Fatalf("State() = %s, want open", b.State())
	}

	called, err := run(b, nil)
	if called {
		t.Error("open circuit invoked the protected call")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_RatioBelowThresholdStaysClosed(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)

	for range 5 {
		run(b, errBackend)
	}
	for range 10 {
		run(b, nil)
	}
	if b.State() != StateClosed {
		t.Fatalf("State() = %s at ratio 0.33, want closed", b.State())
	}
}

func TestBreaker_SamplesOutsideWindowExpire(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)

	for range 9 {
		run(b, errBackend)
	}
	clock.Advance(2 * time.Minute)
	run(b, errBackend)

	if b.State() != StateClosed {
		t.Fatalf("State() = %s, want closed once old samples expired", b.State())
	}
	if stats := b.GetStats(); stats.Samples != 1 {
		t.Errorf("Samples = %d, want 1", stats.Samples)
	}
}

func openBreaker(t *testing.T, b *Breaker) {
	t.Helper()
	for range 10 {
		run(b, errBackend)
	}
	if b.State() != StateOpen {
		t.Fatalf("State() = %s, want open", b.State())
	}
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	openBreaker(t, b)

	clock.Advance(31 * time.Second)
	called, err := run(b, nil)
	if !called || err != nil {
		t.Fatalf("probe called = %v, err = %v", called, err)
	}
	if b.State() != StateClosed {
		t.Errorf("State() = %s after successful probe, want closed", b.State())
	}
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	openBreaker(t, b)

	clock.Advance(31 * time.Second)
	run(b, errBackend)
	if b.State() != StateOpen {
		t.Fatalf("State() = %s after failed probe, want open", b.State())
	}

	clock.Advance(10 * time.Second)
	if called, _ := run(b, nil); called {
		t.Error("re-opened circuit allowed a call before cool-down")
	}
}

func TestBreaker_SingleProbe(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	openBreaker(t, b)
	clock.Advance(31 * time.Second)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()
	<-probeStarted

	called, err := run(b, nil)
	if called || !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("concurrent call during probe: called = %v, err = %v", called, err)
	}

	close(release)
	if err = <-done; err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("State() = %s, want closed", b.State())
	}
}

func TestBreaker_IgnoredErrorsCountAsSuccess(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	errNotFound := errors.New("not found")
	b := New(Config{
		MinimumThroughput: 2,
		FailureThreshold:  1,
		Now:               clock.Now,
		IsFailure:         func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	for range 20 {
		run(b, errNotFound)
	}
	if b.State() != StateClosed {
		t.Fatalf("State() = %s, want closed for ignored errors", b.State())
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	b := New(Config{
		MinimumThroughput: 1,
		FailureThreshold:  1,
		CoolDown:          time.Second,
		Now:               clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	run(b, errBackend)
	clock.Advance(2 * time.Second)
	run(b, nil)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_CancelledContextSkipsCall(t *testing.T) {
	t.Parallel()

	b := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Execute(ctx, func() error {
		called = true
		return nil
	})
	if called || !errors.Is(err, context.Canceled) {
		t.Errorf("called = %v, err = %v", called, err)
	}
}
