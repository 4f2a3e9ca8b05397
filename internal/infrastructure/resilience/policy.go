package resilience

import "time"

// Config is built from the RESILIENCE_* settings. Zero values fall back to DefaultConfig.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig covers a single LLM call or job publish: three quick attempts, and a
// breaker that opens once half of at least ten calls fail.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// normalize replaces unset or out-of-range knobs; the backoff ceiling never
// drops below the first delay.
func (c Config) normalize() Config {
	def := DefaultConfig()
	out := Config{
		RetryMaxAttempts:    orDefault(c.RetryMaxAttempts, def.RetryMaxAttempts),
		RetryInitialBackoff: orDefault(c.RetryInitialBackoff, def.RetryInitialBackoff),
		RetryMaxBackoff:     orDefault(c.RetryMaxBackoff, def.RetryMaxBackoff),
		RetryMultiplier:     c.RetryMultiplier,

		BreakerEnabled:          c.BreakerEnabled,
		BreakerMinRequests:      orDefault(c.BreakerMinRequests, def.BreakerMinRequests),
		BreakerFailureRatio:     orDefault(c.BreakerFailureRatio, def.BreakerFailureRatio),
		BreakerOpenTimeout:      orDefault(c.BreakerOpenTimeout, def.BreakerOpenTimeout),
		BreakerHalfOpenMaxCalls: orDefault(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls),
	}
	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return out
}

func orDefault[T int | uint32 | float64 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
