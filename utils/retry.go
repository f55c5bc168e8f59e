package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	// MaxAttempts is the maximum number of retry attempts
	MaxAttempts int
	// InitialDelay is the initial delay between retries
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
	// Jitter adds randomness to delay to avoid thundering herd
	Jitter bool
	// RetryCondition is a custom function to determine if an error is retryable
	RetryCondition func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryableError represents an error that went through the retry executor
type RetryableError struct {
	Err       error
	Retryable bool
	Attempt   int
}

// Error implements the error interface
func (e *RetryableError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// RetryExecutor handles retry logic
type RetryExecutor struct {
	config *RetryConfig
	logger *Logger
}

// NewRetryExecutor creates a new retry executor
func NewRetryExecutor(config *RetryConfig, logger *Logger) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &RetryExecutor{config: config, logger: logger}
}

// Execute executes a function with retry logic
func (re *RetryExecutor) Execute(ctx context.Context, operation func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= re.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				re.logger.WithSource("retry_executor").Info("Operation succeeded after retry", map[string]interface{}{
					"attempt":        attempt,
					"total_attempts": re.config.MaxAttempts,
				})
			}
			return nil
		}

		lastErr = err
		if !re.isRetryable(err) {
			return &RetryableError{Err: err, Retryable: false, Attempt: attempt}
		}
		if attempt == re.config.MaxAttempts {
			break
		}

		delay := re.calculateDelay(attempt)
		re.logger.WithSource("retry_executor").Warn("Operation failed, retrying", map[string]interface{}{
			"error":        err.Error(),
			"attempt":      attempt,
			"max_attempts": re.config.MaxAttempts,
			"retry_delay":  delay.String(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	re.logger.WithSource("retry_executor").Error("All retry attempts failed", lastErr, map[string]interface{}{
		"max_attempts": re.config.MaxAttempts,
	})
	return &RetryableError{Err: lastErr, Retryable: true, Attempt: re.config.MaxAttempts}
}

// isRetryable determines if an error should trigger a retry
func (re *RetryExecutor) isRetryable(err error) bool {
	if re.config.RetryCondition != nil {
		return re.config.RetryCondition(err)
	}
	// Circuit breaker rejections are final; retrying defeats the breaker.
	if IsCircuitBreakerError(err) {
		return false
	}
	return isCommonRetryableError(err)
}

// isCommonRetryableError checks for common transient error patterns
func isCommonRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"i/o timeout",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// calculateDelay calculates the delay for the next retry attempt
func (re *RetryExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(re.config.InitialDelay) * math.Pow(re.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(re.config.MaxDelay) {
		delay = float64(re.config.MaxDelay)
	}
	if re.config.Jitter {
		delay += rand.Float64() * 0.1 * delay // Up to 10% jitter
	}
	return time.Duration(delay)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return false
}

// RetryWithCircuitBreaker combines retry logic with circuit breaker
func RetryWithCircuitBreaker(
	ctx context.Context,
	retryConfig *RetryConfig,
	circuitBreaker *CircuitBreaker,
	operation func(context.Context) error,
	logger *Logger,
) error {
	if logger == nil {
		logger = GetLogger()
	}
	retryExecutor := NewRetryExecutor(retryConfig, logger)
	return retryExecutor.Execute(ctx, func(ctx context.Context) error {
		return circuitBreaker.Execute(ctx, operation)
	})
}
