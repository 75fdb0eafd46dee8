package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoEventualSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// MaxRetries of 3 means 4 attempts total
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestDoPermanentStopsEarly(t *testing.T) {
	cause := errors.New("status 401")
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return Permanent(cause)
	})
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if err != cause {
		t.Errorf("expected unwrapped cause, got %v", err)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Config{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 2.0}, func() error {
		attempts++
		cancel()
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected cancellation after first attempt, got %d attempts", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout exceeded)"), true},
		{"throttled", errors.New("plex: /api/users failed with status 429"), true},
		{"bad gateway", errors.New("plex: /api/users failed with status 502"), true},
		{"unauthorized", errors.New("plex: /api/users failed with status 401"), false},
		{"not found", errors.New("plex: /api/friends/9 failed with status 404"), false},
		{"validation", errors.New("username is required"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
