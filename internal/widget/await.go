package widget

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds a readiness wait.
type RetryPolicy struct {
	MaxAttempts int           // Probes before giving up (default: 20)
	BaseDelay   time.Duration // Delay after the first miss (default: 50ms)
	MaxDelay    time.Duration // Cap on the delay between probes (default: 1s)
	Multiplier  float64       // Backoff multiplier (default: 1.5)
}

// DefaultRetryPolicy returns the default readiness policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 20,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  1.5,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

// Probe checks once whether an instance has attached. ok=false means
// "not yet"; a non-nil error stops the wait immediately.
type Probe func(ctx context.Context) (inst Instance, ok bool, err error)

// Await polls probe until it yields an instance, fails, ctx ends, or the
// policy's attempts run out, in which case it returns ErrGaveUp.
func Await(ctx context.Context, probe Probe, policy RetryPolicy) (Instance, error) {
	policy = policy.withDefaults()

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		inst, ok, err := probe(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return inst, nil
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}
		select {
		case <-time.After(backoff(attempt, policy)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	log.Printf("[Widget] Instance not ready after %d probes", policy.MaxAttempts)
	return nil, ErrGaveUp
}

// backoff grows the delay exponentially with +-20% jitter, capped at MaxDelay.
func backoff(attempt int, p RetryPolicy) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	delay *= 0.8 + rand.Float64()*0.4
	return time.Duration(delay)
}
