package retrypolicy

import (
	"context"
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	config := Config{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Factor:       2.0,
	}

	if got := Backoff(config, 1); got != 10*time.Millisecond {
		t.Fatalf("attempt 1: %v, want 10ms", got)
	}
	if got := Backoff(config, 2); got != 20*time.Millisecond {
		t.Fatalf("attempt 2: %v, want 20ms", got)
	}
	if got := Backoff(config, 5); got != 40*time.Millisecond {
		t.Fatalf("attempt 5: %v, want capped at 40ms", got)
	}
}

func TestBackoffJitterBounded(t *testing.T) {
	config := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Factor:       2.0,
		Jitter:       true,
	}
	for i := 0; i < 50; i++ {
		got := Backoff(config, 1)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered backoff %v outside [50ms, 150ms]", got)
		}
	}
}

func TestWaitHonorsContext(t *testing.T) {
	config := Config{InitialDelay: time.Minute, MaxDelay: time.Minute, Factor: 1.0}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, config, 1); err == nil {
		t.Fatalf("expected context error")
	}
}
