package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitGrowsDelay(t *testing.T) {
	b := New(10*time.Millisecond, 35*time.Millisecond, 2.0)
	ctx := context.Background()

	expected := []time.Duration{20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, want := range expected {
		start := time.Now()
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
			t.Errorf("Wait %d returned after %v, expected it to sleep", i, elapsed)
		}
		if got := b.CurrentDelay(); got != want {
			t.Errorf("after wait %d expected delay %v, got %v", i, want, got)
		}
	}
	if got := b.Attempts(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestWaitCancelled(t *testing.T) {
	b := New(time.Hour, time.Hour, 2.0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait ignored cancellation, took %v", elapsed)
	}
	if b.CurrentDelay() != time.Hour || b.Attempts() != 0 {
		t.Errorf("expected a cancelled wait to leave the backoff alone, got %v after %d attempts", b.CurrentDelay(), b.Attempts())
	}
}

func TestReset(t *testing.T) {
	b := New(time.Millisecond, 100*time.Millisecond, 3.0)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if b.CurrentDelay() != 9*time.Millisecond {
		t.Fatalf("expected 9ms before reset, got %v", b.CurrentDelay())
	}

	b.Reset()
	if b.CurrentDelay() != time.Millisecond || b.Attempts() != 0 {
		t.Errorf("expected reset to 1ms and 0 attempts, got %v and %d", b.CurrentDelay(), b.Attempts())
	}
}

func TestNewClampsArguments(t *testing.T) {
	tests := []struct {
		name       string
		initial    time.Duration
		max        time.Duration
		multiplier float64
		wantMax    time.Duration
		wantMult   float64
	}{
		{"valid", time.Second, time.Minute, 2, time.Minute, 2},
		{"shrinking multiplier", time.Second, time.Minute, 0.5, time.Minute, 1},
		{"max below initial", time.Second, time.Millisecond, 2, time.Second, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.initial, tt.max, tt.multiplier)
			if b.maxDelay != tt.wantMax || b.multiplier != tt.wantMult {
				t.Errorf("expected max %v and multiplier %v, got %v and %v", tt.wantMax, tt.wantMult, b.maxDelay, b.multiplier)
			}
		})
	}
}
