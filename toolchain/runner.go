package toolchain

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
)

// BreakerSettings controls when the launch breaker opens
type BreakerSettings struct {
	// MaxFailures is the number of consecutive launch failures that opens
	// the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before a trial launch.
	Timeout time.Duration
}

// DefaultBreakerSettings returns the settings used when none are configured
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxFailures: 3,
		Timeout:     30 * time.Second,
	}
}

// waitDelay bounds how long a canceled tool may keep its output pipes open
const waitDelay = 2 * time.Second

// Command is one tool invocation
type Command struct {
	Dir  string // working directory, empty for the current one
	Name string
	Args []string
}

// Runner launches external tools and captures their output
type Runner struct {
	breaker *gobreaker.CircuitBreaker
}

// launchError marks a command that never started
type launchError struct {
	err error
}

func (e *launchError) Error() string { return e.err.Error() }
func (e *launchError) Unwrap() error { return e.err }

type exitError struct {
	err    error
	stderr string
	code   int
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// NewRunner creates a runner with its own breaker
func NewRunner(s BreakerSettings) *Runner {
	if s.MaxFailures == 0 {
		s.MaxFailures = DefaultBreakerSettings().MaxFailures
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultBreakerSettings().Timeout
	}
	limit := s.MaxFailures

	return &Runner{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "toolchain",
			Timeout: s.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= limit
			},
			IsSuccessful: func(err error) bool {
				var le *launchError
				return !errors.As(err, &le)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				Logger().Warn("tool launcher state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// Output is what a finished tool wrote and how it exited
type Output struct {
	Stdout []byte
	Stderr []byte
	Code   int

	err error // wait error behind a non-zero Code
}

// Run executes cmd and returns its stdout. A tool that cannot be started
// or exits non-zero yields a tool_failure error in phase; an open breaker
// yields unavailable without launching anything.
func (r *Runner) Run(ctx context.Context, phase errors.Phase, cmd Command) ([]byte, error) {
	out, err := r.Exec(ctx, phase, cmd)
	if err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, errors.ToolFailure(phase, cmd.Name, out.Code, string(out.Stderr), out.err)
	}
	return out.Stdout, nil
}

// Exec is Run for tools whose exit code is not the verdict: a tool that
// ran to completion returns its Output whatever the code. Launch failures,
// an open breaker and cancellation are still errors.
func (r *Runner) Exec(ctx context.Context, phase errors.Phase, cmd Command) (*Output, error) {
	start := time.Now()
	res, err := r.breaker.Execute(func() (interface{}, error) {
		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
		c.Dir = cmd.Dir
		c.Stdout = &stdout
		c.Stderr = &stderr
		c.WaitDelay = waitDelay

		if err := c.Start(); err != nil {
			return nil, &launchError{err: err}
		}
		out := &Output{}
		if err := c.Wait(); err != nil {
			var ee *exec.ExitError
			if ctx.Err() != nil || !errors.As(err, &ee) || ee.ExitCode() < 0 {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				return nil, &exitError{err: err, code: -1, stderr: stderr.String()}
			}
			out.Code, out.err = ee.ExitCode(), err
		}
		out.Stdout, out.Stderr = stdout.Bytes(), stderr.Bytes()
		return out, nil
	})

	Logger().Debug("ran tool",
		zap.String("tool", cmd.Name),
		zap.Strings("args", cmd.Args),
		zap.String("dir", cmd.Dir),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	if err == nil {
		return res.(*Output), nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.New(phase, errors.KindUnavailable).
			Cause(err).
			Detail("%s not launched: too many tools failed to start", cmd.Name).
			Build()
	}

	var le *launchError
	if errors.As(err, &le) {
		return nil, errors.ToolFailure(phase, cmd.Name, -1, "", le.err)
	}

	var xe *exitError
	if errors.As(err, &xe) {
		return nil, errors.ToolFailure(phase, cmd.Name, xe.code, xe.stderr, xe.err)
	}
	return nil, errors.Wrap(phase, errors.KindToolFailure, err, cmd.Name)
}

// State reports the breaker state, e.g. "closed" or "open"
func (r *Runner) State() string {
	return r.breaker.State().String()
}
