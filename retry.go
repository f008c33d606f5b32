package eduapi

import (
	"context"
	"fmt"
	"time"

	"github.com/kelaskita/eduapi/internal/backoff"
)

// Operation is one attempt of a retryable unit of work. The attempt counter
// starts at 1.
type Operation func(ctx context.Context, attempt int) error

// RetryExecutor re-invokes an operation under a bounded schedule. It is the
// single notification point for a request lifecycle: nothing is emitted for
// intermediate attempts, exactly one notification describes the final
// outcome of a failed request, and a late success after earlier failures
// emits an informational one.
type RetryExecutor struct {
	notifier Notifier
	logger   Logger
	debug    *DebugConfig
	metrics  *MetricsCollector
	strategy backoff.Strategy
}

// NewRetryExecutor creates a standalone executor. A nil notifier suppresses
// notifications.
func NewRetryExecutor(notifier Notifier) *RetryExecutor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RetryExecutor{
		notifier: notifier,
		strategy: backoff.Exponential{},
	}
}

// Execute runs op until it succeeds, the attempt budget is exhausted, or the
// retry predicate rejects the error. The wait before attempt n+1 is
// InitialDelay * Multiplier^(n-1), jittered and capped per config, and
// honors context cancellation.
func (e *RetryExecutor) Execute(ctx context.Context, op Operation, cfg RetryConfig) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	strategy := e.strategy
	if strategy == nil {
		strategy = backoff.Exponential{}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if attempt > 1 && e.metrics != nil {
			e.metrics.RecordRetry(attempt)
		}

		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				e.notify(Notification{
					Severity: SeverityInfo,
					Message:  fmt.Sprintf("Request succeeded after %d attempts.", attempt),
				})
			}
			return nil
		}
		lastErr = err

		if attempt >= cfg.MaxAttempts {
			// Exhausted the budget.
			e.notifyError(lastErr, fmt.Sprintf(" (failed after %d attempts)", attempt))
			return lastErr
		}
		if !retryIf(err) {
			e.notifyError(lastErr, "")
			return lastErr
		}

		delay := strategy.Calculate(attempt-1, cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier, cfg.Jitter)
		if e.debug != nil && e.debug.Enabled && e.debug.LogRetries && e.logger != nil {
			e.logger.Info("Scheduling retry",
				"attempt", attempt+1, "maxAttempts", cfg.MaxAttempts, "backoff", delay, "error", err.Error())
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			cancelled := &APIError{
				Kind:      KindTimeout,
				Message:   "request abandoned while waiting to retry",
				Cause:     ctx.Err(),
				Attempt:   attempt,
				Timestamp: time.Now(),
			}
			e.notifyError(cancelled, "")
			return cancelled
		}
	}
}

func (e *RetryExecutor) notifyError(err error, suffix string) {
	e.notify(Notification{
		Severity: SeverityError,
		Kind:     Kind(err),
		Message:  UserMessage(err) + suffix,
	})
}

func (e *RetryExecutor) notify(n Notification) {
	if e.notifier == nil {
		return
	}
	if e.metrics != nil {
		e.metrics.RecordNotification(string(n.Severity), string(n.Kind))
	}
	e.notifier.Notify(n)
}
