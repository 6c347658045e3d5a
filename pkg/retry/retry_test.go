package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetryer_Success(t *testing.T) {
	retryer, err := NewRetryer(EnableRetry(3, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	config := EnableRetry(5, 5*time.Millisecond)
	config.Jitter = 0
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	retryer, err := NewRetryer(EnableRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	sentinel := errors.New("connection refused")
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel, got %v", err)
	}
	if !strings.Contains(err.Error(), "max retry attempts (3) exceeded") {
		t.Errorf("Unexpected error text: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_Backoff(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		expected []time.Duration
	}{
		{"Constant", BackoffConstant, []time.Duration{10, 10, 10}},
		{"Linear", BackoffLinear, []time.Duration{10, 20, 30}},
		{"Exponential", BackoffExponential, []time.Duration{10, 20, 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := EnableRetry(5, 10*time.Millisecond)
			config.BackoffStrategy = tt.strategy
			config.Jitter = 0
			retryer, err := NewRetryer(config)
			if err != nil {
				t.Fatalf("Failed to create retryer: %v", err)
			}

			for i, want := range tt.expected {
				got := retryer.calculateDelay(i + 1)
				if got != want*time.Millisecond {
					t.Errorf("attempt %d: expected %v, got %v", i+1, want*time.Millisecond, got)
				}
			}
		})
	}
}

func TestRetryer_MaxDelayCap(t *testing.T) {
	config := EnableRetry(10, 100*time.Millisecond)
	config.MaxDelay = 150 * time.Millisecond
	config.Jitter = 0
	retryer, _ := NewRetryer(config)

	if got := retryer.calculateDelay(5); got != 150*time.Millisecond {
		t.Errorf("Expected delay capped at 150ms, got %v", got)
	}
}

func TestRetryer_ContextCancellation(t *testing.T) {
	retryer, _ := NewRetryer(EnableRetry(10, 50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := retryer.Do(ctx, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	if err == nil || !strings.Contains(err.Error(), "context cancelled") {
		t.Errorf("Expected context cancellation, got %v", err)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	config := EnableRetry(3, time.Millisecond)
	var calls []int
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		calls = append(calls, attempt)
	}
	retryer, _ := NewRetryer(config)

	_ = retryer.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("Expected callbacks for attempts 1 and 2, got %v", calls)
	}
}

func TestRetryer_Disabled(t *testing.T) {
	retryer, err := NewRetryer(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("fail")
	})
	if err == nil || err.Error() != "fail" {
		t.Errorf("Expected unwrapped error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"Max below initial", func(c *Config) { c.MaxDelay = time.Millisecond; c.InitialDelay = time.Second }, true},
		{"Bad strategy", func(c *Config) { c.BackoffStrategy = "random" }, true},
		{"Bad jitter", func(c *Config) { c.Jitter = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := EnableRetry(3, 10*time.Millisecond)
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
