// Package backoff computes reconnect delays with capped exponential growth.
//
// The delay for attempt n (1-based) is Initial * 2^(n-1), capped at Max.
// With the stream defaults (Initial 1s, Max 30s):
//   - Attempt 1: 1s
//   - Attempt 2: 2s
//   - Attempt 3: 4s
//   - Attempt 4: 8s
//   - Attempt 5: 16s
//   - Attempt 6+: 30s (capped)
//
// Optional jitter adds a fraction of the delay that grows linearly with the
// attempt number, so several clients dropped by the same server restart do
// not all come back at the same instant.
package backoff

import (
	"errors"
	"math"
	"time"
)

// Config defines the backoff policy.
//
// The zero value is not usable; Initial and MaxAttempts must be set.
type Config struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the delay. Zero means no cap.
	Max time.Duration

	// MaxAttempts is the number of retries allowed before giving up.
	MaxAttempts int

	// Jitter stretches later delays (0.0 to 1.0):
	//   jitter_amount = delay * Jitter * attempt / MaxAttempts
	// Zero means no jitter, which keeps delays exact.
	Jitter float64
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Initial <= 0 {
		return errors.New("initial delay must be positive")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("max attempts must be positive")
	}
	if c.Max > 0 && c.Max < c.Initial {
		return errors.New("max delay must not be smaller than initial delay")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return errors.New("jitter must be between 0 and 1")
	}
	return nil
}

// Delay computes the delay for a 1-based attempt number.
// Attempts below 1 are treated as 1.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Exponential backoff: 2^(attempt-1) * Initial.
	multiplier := math.Pow(2, float64(attempt-1))
	delay := time.Duration(multiplier * float64(c.Initial))

	// Guard against float overflow for very large attempt numbers.
	if delay <= 0 || (c.Max > 0 && delay > c.Max) {
		delay = c.Max
	}

	if c.Jitter > 0 && c.MaxAttempts > 0 {
		jitterAmount := float64(delay) * c.Jitter * float64(attempt) / float64(c.MaxAttempts)
		delay += time.Duration(jitterAmount)
	}

	return delay
}

// Exhausted reports whether attempts already made have used up the budget.
func (c Config) Exhausted(attempts int) bool {
	return attempts >= c.MaxAttempts
}
