package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
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

var errUpstream = errors.New("upstream failure")

func failing(context.Context) error    { return errUpstream }
func succeeding(context.Context) error { return nil }

func newTestRegistry(clock *fakeClock) *Registry {
	return New(Settings{FailureThreshold: 3, Cooldown: time.Minute}, WithClock(clock.Now))
}

func TestClosedPassesThrough(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	called := false
	err := r.Do(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("wrapped call not invoked")
	}
	if r.Status("k") != Closed {
		t.Fatalf("expected closed, got %v", r.Status("k"))
	}
}

func TestOpensAfterThresholdAndRejectsFast(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)

	for i := 0; i < 3; i++ {
		if err := r.Do(context.Background(), "k", failing); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if r.Status("k") != Open {
		t.Fatalf("expected open after threshold, got %v", r.Status("k"))
	}

	invoked := false
	err := r.Do(context.Background(), "k", func(context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if invoked {
		t.Fatalf("wrapped call must not run while open")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	for i := 0; i < 2; i++ {
		_ = r.Do(context.Background(), "k", failing)
	}
	if err := r.Do(context.Background(), "k", succeeding); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two more failures must not trip a threshold of three.
	for i := 0; i < 2; i++ {
		_ = r.Do(context.Background(), "k", failing)
	}
	if r.Status("k") != Closed {
		t.Fatalf("expected closed, got %v", r.Status("k"))
	}
}

func TestHalfOpenTrialSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	for i := 0; i < 3; i++ {
		_ = r.Do(context.Background(), "k", failing)
	}
	clock.Advance(time.Minute + time.Second)

	if err := r.Do(context.Background(), "k", succeeding); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if r.Status("k") != Closed {
		t.Fatalf("expected closed after successful trial, got %v", r.Status("k"))
	}
}

func TestHalfOpenTrialFailureReopens(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	for i := 0; i < 3; i++ {
		_ = r.Do(context.Background(), "k", failing)
	}
	clock.Advance(time.Minute + time.Second)

	if err := r.Do(context.Background(), "k", failing); !errors.Is(err, errUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if r.Status("k") != Open {
		t.Fatalf("expected reopened circuit, got %v", r.Status("k"))
	}

	// Cooldown clock restarted: still rejecting before it elapses again.
	clock.Advance(30 * time.Second)
	if err := r.Do(context.Background(), "k", succeeding); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen during restarted cooldown, got %v", err)
	}
	clock.Advance(31 * time.Second)
	if err := r.Do(context.Background(), "k", succeeding); err != nil {
		t.Fatalf("expected trial admitted after cooldown, got %v", err)
	}
}

func TestHalfOpenAdmitsExactlyOneConcurrentTrial(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	for i := 0; i < 3; i++ {
		_ = r.Do(context.Background(), "k", failing)
	}
	clock.Advance(2 * time.Minute)

	const callers = 16
	release := make(chan struct{})
	var admitted, rejected int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Do(context.Background(), "k", func(context.Context) error {
				<-release
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrOpen) {
				rejected++
			} else if err == nil {
				admitted++
			}
		}()
	}

	// Give every goroutine a chance to reach the breaker, then let the
	// single trial finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("expected exactly one admitted trial, got %d", admitted)
	}
	if rejected != callers-1 {
		t.Fatalf("expected %d rejections, got %d", callers-1, rejected)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	r := New(Settings{FailureThreshold: 1, Cooldown: time.Minute},
		WithClock(clock.Now),
		WithKeySettings("tolerant", Settings{FailureThreshold: 10, Cooldown: time.Minute}))

	_ = r.Do(context.Background(), "fragile", failing)
	if r.Status("fragile") != Open {
		t.Fatalf("expected fragile key open")
	}
	_ = r.Do(context.Background(), "tolerant", failing)
	if r.Status("tolerant") != Closed {
		t.Fatalf("expected tolerant key closed")
	}
}

func TestStateHookObservesTransitions(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var seen []Status
	r := New(Settings{FailureThreshold: 1, Cooldown: time.Minute},
		WithClock(clock.Now),
		WithStateHook(func(key string, s Status) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}))

	_ = r.Do(context.Background(), "k", failing)
	clock.Advance(2 * time.Minute)
	_ = r.Do(context.Background(), "k", succeeding)

	mu.Lock()
	defer mu.Unlock()
	want := []Status{Open, Closed}
	if len(seen) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: got %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestConcurrentFailuresTripOnce(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	opens := 0
	r := New(Settings{FailureThreshold: 5, Cooldown: time.Minute},
		WithClock(clock.Now),
		WithStateHook(func(key string, s Status) {
			if s == Open {
				mu.Lock()
				opens++
				mu.Unlock()
			}
		}))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Do(context.Background(), "k", failing)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if opens != 1 {
		t.Fatalf("expected a single closed->open transition, got %d", opens)
	}
	if r.Status("k") != Open {
		t.Fatalf("expected open circuit")
	}
}
