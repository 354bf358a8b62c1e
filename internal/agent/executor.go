// Package agent provides the retrying executor every external generative
// call goes through. It gives each capability invocation uniform failure
// semantics: bounded attempts, deterministic exponential backoff, structured
// per-attempt logging, and an audit record per terminal outcome.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// Operation is a single fallible call into an external capability. The
// returned string is the operation's output (an artifact path or raw
// response text) and is recorded for audit only.
type Operation func(ctx context.Context) (string, error)

// Result reports a successful execution.
type Result struct {
	Output   string
	Elapsed  time.Duration
	Attempts int
}

// Options configure one execution. Zero values fall back to the defaults.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	RunID       string
	Input       string
}

// ExhaustedError is returned once every attempt has failed. It wraps the
// last underlying error and reports how many attempts were made.
type ExhaustedError struct {
	Agent    string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Agent, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// AuditEntry records the terminal outcome of one execution.
type AuditEntry struct {
	RunID        string
	Agent        string
	Success      bool
	Input        string
	Output       string
	ErrorMessage string
	Elapsed      time.Duration
	Attempts     int
}

// AuditFunc receives one entry per terminal outcome. Audit failures must
// not affect the execution result, so implementations swallow their own
// errors.
type AuditFunc func(ctx context.Context, entry AuditEntry)

// Executor wraps operations with retry, backoff, and audit logging.
type Executor struct {
	logger *slog.Logger
	audit  AuditFunc
	sleep  func(ctx context.Context, d time.Duration) error

	maxAttempts int
	baseDelay   time.Duration
}

// NewExecutor creates an executor with the default retry policy. audit may
// be nil.
func NewExecutor(logger *slog.Logger, audit AuditFunc) *Executor {
	return &Executor{
		logger:      logger,
		audit:       audit,
		sleep:       sleepCtx,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
}

// SetRetryPolicy overrides the executor-wide defaults applied when an
// execution's Options leave them zero.
func (e *Executor) SetRetryPolicy(maxAttempts int, baseDelay time.Duration) {
	if maxAttempts > 0 {
		e.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		e.baseDelay = baseDelay
	}
}

// Execute invokes op up to opts.MaxAttempts times, sleeping
// BaseDelay * 2^(attempt-1) between failed attempts. No jitter is added;
// retries target transient external-service failures, not congestion.
func (e *Executor) Execute(ctx context.Context, name string, op Operation, opts Options) (Result, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = e.maxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = e.baseDelay
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attemptStart := time.Now()
		output, err := op(ctx)
		if err == nil {
			res := Result{
				Output:   output,
				Elapsed:  time.Since(start),
				Attempts: attempt,
			}
			if e.logger != nil {
				e.logger.Info("agent call succeeded",
					"agent", name,
					"attempt", attempt,
					"duration_ms", time.Since(attemptStart).Milliseconds(),
				)
			}
			e.record(ctx, AuditEntry{
				RunID:    opts.RunID,
				Agent:    name,
				Success:  true,
				Input:    opts.Input,
				Output:   output,
				Elapsed:  res.Elapsed,
				Attempts: attempt,
			})
			return res, nil
		}

		lastErr = err
		if e.logger != nil {
			e.logger.Warn("agent call failed",
				"agent", name,
				"attempt", attempt,
				"max_attempts", opts.MaxAttempts,
				"duration_ms", time.Since(attemptStart).Milliseconds(),
				"error", err,
			)
		}

		if attempt < opts.MaxAttempts {
			delay := opts.BaseDelay << (attempt - 1)
			if err := e.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
	}

	elapsed := time.Since(start)
	exhausted := &ExhaustedError{Agent: name, Attempts: opts.MaxAttempts, Last: lastErr}
	e.record(ctx, AuditEntry{
		RunID:        opts.RunID,
		Agent:        name,
		Input:        opts.Input,
		ErrorMessage: exhausted.Error(),
		Elapsed:      elapsed,
		Attempts:     opts.MaxAttempts,
	})
	return Result{Elapsed: elapsed, Attempts: opts.MaxAttempts}, exhausted
}

func (e *Executor) record(ctx context.Context, entry AuditEntry) {
	if e.audit == nil {
		return
	}
	e.audit(ctx, entry)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
