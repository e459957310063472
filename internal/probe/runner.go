package probe

import (
	"context"
	"io"
	"log/slog"
)

// Child exit statuses.
const (
	ExitSucceeded = 0
	ExitFailed    = 1
)

// Runner executes one operation in child mode and reports the result on
// Stdout. It does not recover panics: a fault in the operation must take
// the process down so the supervisor can observe it.
type Runner struct {
	Stdout io.Writer
	Logger *slog.Logger
}

// Run looks up the named operation, runs it once and writes exactly one
// marker line. It returns the status the child process should exit with.
func (r *Runner) Run(ctx context.Context, name string) int {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	op, err := Lookup(name)
	if err != nil {
		return r.report(logger, Result{Kind: Failed, Message: err.Error()})
	}

	logger.Debug("running operation", "operation", name)
	payload, err := op.Run(ctx)
	if err != nil {
		return r.report(logger, Result{Kind: Failed, Message: err.Error()})
	}
	return r.report(logger, Result{Kind: Succeeded, Payload: payload})
}

func (r *Runner) report(logger *slog.Logger, res Result) int {
	if err := WriteResult(r.Stdout, res); err != nil {
		logger.Error("writing probe result", "error", err)
		return ExitFailed
	}
	if res.Kind == Succeeded {
		return ExitSucceeded
	}
	return ExitFailed
}
