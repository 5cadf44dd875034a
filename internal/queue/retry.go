package queue

import (
	"math"
	"math/rand"
	"time"

	"github.com/SamiESK/insta-scrapper/internal/common"
)

// RetryPolicy computes the delay before a failed job's next attempt
type RetryPolicy struct {
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy builds the policy from queue configuration, falling back to
// sane defaults for unset values
func NewRetryPolicy(config common.QueueConfig) *RetryPolicy {
	multiplier := config.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 2.0
	}
	return &RetryPolicy{
		InitialBackoff:    common.ParseDuration(config.InitialBackoff, 30*time.Second),
		MaxBackoff:        common.ParseDuration(config.MaxBackoff, 15*time.Minute),
		BackoffMultiplier: multiplier,
	}
}

// CalculateBackoff returns the exponential backoff for the given attempt
// (0-based) with ±25% jitter, capped at MaxBackoff
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// Jitter spreads retries out so failed accounts do not stampede back in
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}
