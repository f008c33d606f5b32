package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Calculate returns the delay before the retry following the given
	// zero-based attempt number.
	Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration
}

// Exponential grows the delay geometrically with optional uniform jitter.
// With zero jitter the schedule is exact: initial * multiplier^attempt.
type Exponential struct{}

func (Exponential) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initial) * Pow(multiplier, attempt))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > max {
			delay = max
		} else {
			delay += extra
		}
	}
	return delay
}

// DecorrelatedJitter implements AWS-style decorrelated jitter:
// random_between(base, min(cap, base * 3^attempt)). It trades schedule
// predictability for smoother tail latencies under contention.
type DecorrelatedJitter struct{}

func (DecorrelatedJitter) Calculate(attempt int, initial, max time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base * Pow(3.0, attempt)

	maxFloat := float64(max)
	if upper > maxFloat || upper < 0 {
		upper = maxFloat
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow computes base^exponent by repeated multiplication; exponents here are
// small and non-negative.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
