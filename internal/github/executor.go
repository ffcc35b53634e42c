package github

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRateLimitMarker is what gh prints when GitHub throttles content creation.
const DefaultRateLimitMarker = "was submitted too quickly"

type ExecutorOptions struct {
	DryRun bool
	// ThrottleEvery pauses for ThrottlePause after every Nth successful call.
	ThrottleEvery int
	ThrottlePause time.Duration
	// RateLimitMarker is matched against gh's error output.
	RateLimitMarker string
	MaxRetries      int
	RetryInterval   time.Duration
	// WaitForOperator blocks until someone confirms the rate limit has
	// passed. When nil, rate limited calls back off exponentially instead.
	WaitForOperator func(ctx context.Context) error
	Sleep           func(ctx context.Context, d time.Duration) error
	Logger          *slog.Logger
}

// Executor runs every gh call of a migration in order, retrying rate limited
// calls and pacing the run with a fixed pause every few calls.
type Executor struct {
	runner Runner
	opts   ExecutorOptions
	count  int
}

func NewExecutor(runner Runner, opts ExecutorOptions) *Executor {
	if opts.RateLimitMarker == "" {
		opts.RateLimitMarker = DefaultRateLimitMarker
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Minute
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{runner: runner, opts: opts, count: 1}
}

// Count is the 1-based number of the next call.
func (e *Executor) Count() int {
	return e.count
}

func (e *Executor) DryRun() bool {
	return e.opts.DryRun
}

// Execute runs gh with args. In dry run mode nothing is run and the call is
// not counted.
func (e *Executor) Execute(ctx context.Context, args []string) (string, error) {
	if e.opts.DryRun {
		e.opts.Logger.Debug("dry run", "args", args)
		return "", nil
	}

	var output string
	attempt := func() error {
		out, err := e.runner.Run(ctx, args...)
		if err == nil {
			output = out
			return nil
		}
		if !e.rateLimited(err) {
			return backoff.Permanent(err)
		}
		e.opts.Logger.Warn("rate limited by GitHub", "call", e.count)
		if e.opts.WaitForOperator != nil {
			if werr := e.opts.WaitForOperator(ctx); werr != nil {
				return backoff.Permanent(werr)
			}
		}
		return err
	}
	if err := backoff.Retry(attempt, e.backOff(ctx)); err != nil {
		return "", err
	}
	if len(strings.TrimSpace(output)) > 0 {
		e.opts.Logger.Debug("gh output", "output", strings.TrimSpace(output))
	}

	if e.opts.ThrottleEvery > 0 && e.count%e.opts.ThrottleEvery == 0 {
		e.opts.Logger.Info("pausing to stay under GitHub limits", "call", e.count, "pause", e.opts.ThrottlePause)
		if err := e.opts.Sleep(ctx, e.opts.ThrottlePause); err != nil {
			return "", err
		}
	}
	e.count++
	return output, nil
}

func (e *Executor) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if e.opts.WaitForOperator == nil {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = e.opts.RetryInterval
		exp.MaxInterval = 10 * e.opts.RetryInterval
		exp.MaxElapsedTime = 0
		b = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(e.opts.MaxRetries, 0))), ctx)
}

func (e *Executor) rateLimited(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, e.opts.RateLimitMarker)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
