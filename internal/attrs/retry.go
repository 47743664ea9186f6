package attrs

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/lib/pq"
)

// RetryConfig configures retry behavior for transient backend failures.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay between retries (default: 100ms)
	MaxDelay   time.Duration // Maximum delay between retries (default: 5s)
	Multiplier float64       // Delay multiplier for exponential backoff (default: 2.0)
	EnableLog  bool          // Whether to log retry attempts
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		EnableLog:  true,
	}
}

// withRetry runs fn until it succeeds, fails permanently, or the retry
// budget is spent.
func withRetry(ctx context.Context, driver string, cfg RetryConfig, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 && cfg.EnableLog {
				log.Printf("[Store/%s] Succeeded on attempt %d", driver, attempt+1)
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt < cfg.MaxRetries {
			delay := calculateDelay(attempt, cfg)
			if cfg.EnableLog {
				log.Printf("[Store/%s] Attempt %d failed (%v), retrying in %v...", driver, attempt+1, err, delay)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if cfg.EnableLog {
		log.Printf("[Store/%s] All %d attempts failed", driver, cfg.MaxRetries+1)
	}

	var storeErr *StoreError
	if errors.As(lastErr, &storeErr) {
		storeErr.Retryable = false
	}
	return lastErr
}

// shouldRetry reports whether err is a lock or serialization conflict that
// may succeed on a later attempt.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) && storeErr.Retryable {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return pqErr.Code.Class() == "08" // connection exception
	}

	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// calculateDelay computes the delay for the given attempt using exponential backoff with jitter
func calculateDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// Randomize between 80% and 120% of delay
	jitter := 0.8 + rand.Float64()*0.4
	delay *= jitter

	return time.Duration(delay)
}
