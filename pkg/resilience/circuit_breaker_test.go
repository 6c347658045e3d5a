package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errTest = errors.New("test error")

func newTestBreaker(t *testing.T, clock *fakeClock, onChange func(string, State, State)) *CircuitBreaker {
	t.Helper()
	config := DefaultConfig("test")
	config.MaxFailures = 3
	config.OpenTimeout = time.Minute
	config.SuccessThreshold = 2
	config.Clock = clock.Now
	config.OnStateChange = onChange

	cb, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create circuit breaker: %v", err)
	}
	return cb
}

func fail(ctx context.Context) error    { return errTest }
func succeed(ctx context.Context) error { return nil }

func TestCircuitBreaker_Success(t *testing.T) {
	cb := newTestBreaker(t, &fakeClock{t: time.Unix(0, 0)}, nil)

	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected StateClosed, got %v", cb.State())
	}
	if counts := cb.Counts(); counts.TotalSuccesses != 1 || counts.Requests != 1 {
		t.Errorf("Unexpected counts %+v", counts)
	}
}

func TestCircuitBreaker_OpenAfterMaxFailures(t *testing.T) {
	cb := newTestBreaker(t, &fakeClock{t: time.Unix(0, 0)}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errTest) {
			t.Fatalf("Expected test error, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("Expected StateClosed after 2 failures, got %v", cb.State())
	}

	// успех сбрасывает серию ошибок
	cb.Execute(ctx, succeed)
	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	if cb.State() != StateOpen {
		t.Fatalf("Expected StateOpen, got %v", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) || !IsRejected(err) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Function must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(t, clock, func(name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}

	clock.Advance(59 * time.Second)
	if cb.State() != StateOpen {
		t.Fatalf("Expected StateOpen before timeout, got %v", cb.State())
	}

	clock.Advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected StateHalfOpen after timeout, got %v", cb.State())
	}

	// ошибка в Half-Open снова открывает circuit
	cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("Expected StateOpen after half-open failure, got %v", cb.State())
	}

	clock.Advance(time.Minute)
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, succeed); err != nil {
			t.Fatalf("Expected success in half-open, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("Expected StateClosed, got %v", cb.State())
	}

	expected := []string{"closed->open", "open->half-open", "half-open->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(expected) {
		t.Fatalf("Expected transitions %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, expected[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_CanceledIsNotFailure(t *testing.T) {
	cb := newTestBreaker(t, &fakeClock{t: time.Unix(0, 0)}, nil)

	for i := 0; i < 5; i++ {
		cb.Execute(context.Background(), func(ctx context.Context) error {
			return context.Canceled
		})
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected StateClosed, got %v", cb.State())
	}
	if counts := cb.Counts(); counts.TotalFailures != 0 || counts.TotalSuccesses != 5 {
		t.Errorf("Unexpected counts %+v", counts)
	}
}

func TestCircuitBreaker_MaxConcurrentCalls(t *testing.T) {
	config := DefaultConfig("limited")
	config.MaxConcurrentCalls = 1
	cb, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create circuit breaker: %v", err)
	}

	err = cb.Execute(context.Background(), func(ctx context.Context) error {
		return cb.Execute(ctx, succeed)
	})
	if !errors.Is(err, ErrTooManyCalls) {
		t.Errorf("Expected ErrTooManyCalls, got %v", err)
	}
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	cb := newTestBreaker(t, &fakeClock{t: time.Unix(0, 0)}, nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		cb.Execute(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	}()

	if counts := cb.Counts(); counts.TotalFailures != 1 {
		t.Errorf("Expected 1 failure, got %+v", counts)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := newTestBreaker(t, &fakeClock{t: time.Unix(0, 0)}, nil)
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), fail)
	}
	cb.Reset()
	if !(cb.State() == StateClosed) {
		t.Errorf("Expected StateClosed after reset, got %v", cb.State())
	}
	if cb.String() != "CircuitBreaker(test state=closed failures=0/3)" {
		t.Errorf("Unexpected String(): %s", cb.String())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", DefaultConfig("x"), false},
		{"no failures", Config{OpenTimeout: time.Second}, true},
		{"no timeout", Config{MaxFailures: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	config := Config{MaxFailures: 1, OpenTimeout: time.Second}
	if err := config.Validate(); err != nil {
		t.Fatal(err)
	}
	if config.Name != "circuit-breaker" || config.SuccessThreshold != 1 {
		t.Errorf("Defaults not applied: %+v", config)
	}
}
