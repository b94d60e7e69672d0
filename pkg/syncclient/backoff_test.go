package syncclient

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{attempt: 1, jitter: 0, want: time.Second},
		{attempt: 2, jitter: 0, want: 2 * time.Second},
		{attempt: 3, jitter: 0, want: 4 * time.Second},
		{attempt: 5, jitter: 0, want: 16 * time.Second},
		{attempt: 1, jitter: 0.5, want: 1050 * time.Millisecond},
		{attempt: 3, jitter: 0.5, want: 4200 * time.Millisecond},
		{attempt: 0, jitter: 0, want: time.Second},
		{attempt: 2, jitter: 7, want: 2200 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := Backoff(time.Second, tt.attempt, tt.jitter); got != tt.want {
			t.Errorf("Backoff(1s, %d, %v) = %s, want %s", tt.attempt, tt.jitter, got, tt.want)
		}
	}
}

func TestBackoffStaysWithinJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := 1; attempt <= DefaultMaxAttempts; attempt++ {
		lower := DefaultBaseDelay << (attempt - 1)
		upper := lower + lower/10
		for i := 0; i < 200; i++ {
			got := Backoff(DefaultBaseDelay, attempt, rng.Float64())
			if got < lower || got > upper {
				t.Fatalf("attempt %d: delay %s outside [%s, %s]", attempt, got, lower, upper)
			}
		}
	}
}
