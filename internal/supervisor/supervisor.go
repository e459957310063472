// Package supervisor runs one probe in a re-executed child process under a
// hard deadline and classifies what happened to it.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/hangcheck/internal/probe"
	"github.com/deixis/hangcheck/internal/verdict"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultKillGrace    = 2 * time.Second
	defaultMaxOutput    = 1 << 20
)

// Supervisor spawns the probe child and watches it.
type Supervisor struct {
	Executable   string        // binary to re-exec; empty means os.Executable
	Args         []string      // arguments placed before the child flag
	Dir          string        // child working directory; empty means ours
	Env          []string      // extra KEY=VALUE entries for the child
	Timeout      time.Duration // wall-clock budget for the child
	PollInterval time.Duration
	KillGrace    time.Duration // how long to wait for a forced kill to be confirmed
	MaxOutput    int           // bytes of combined output kept
	Logger       *slog.Logger
}

// InfrastructureError reports that the supervisor itself failed, as opposed
// to the probed operation. It is never turned into a verdict.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// exit is what the wait goroutine publishes once the child is reaped.
type exit struct {
	state *os.ProcessState
	err   error
}

// killProcessGroup is swapped out by tests that need a kill to go unseen.
var killProcessGroup = killGroup

// Probe runs operation once in a child process and returns its verdict.
//
// The child's stdout and stderr share one pipe that the supervisor drains
// into a capped buffer. Process exit is watched separately from the pipe,
// so a grandchild holding the pipe open cannot delay the verdict. The
// supervisor polls for the child's exit every PollInterval until Timeout
// elapses; at that point the child's process group is killed and the
// verdict is Hang. Whatever is left of the group after a normal exit is
// killed too. If ctx is cancelled first the child is killed and ctx's error
// is returned without a verdict.
func (s *Supervisor) Probe(ctx context.Context, operation string) (*verdict.Verdict, error) {
	if s.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	logger := s.logger()

	exe := s.Executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, &InfrastructureError{Op: "locating own executable", Err: err}
		}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &InfrastructureError{Op: "creating output pipe", Err: err}
	}

	args := append(append([]string{}, s.Args...), probe.ChildFlag)
	cmd := exec.Command(exe, args...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Env = append(cmd.Env,
		probe.OperationEnv+"="+operation,
		// A runtime fault or unrecovered panic must end in a signal, not
		// the runtime's ordinary exit status 2.
		"GOTRACEBACK=crash",
	)
	cmd.SysProcAttr = processGroupAttr()
	cmd.Stdout = pw
	cmd.Stderr = pw

	runID := uuid.New().String()
	start := time.Now()
	err = cmd.Start()
	// Only the child's copy of the write end may stay open, or the drain
	// below would never see EOF.
	_ = pw.Close()
	if err != nil {
		_ = pr.Close()
		return nil, &InfrastructureError{Op: "spawning child " + exe, Err: err}
	}
	pid := cmd.Process.Pid
	logger.Debug("child spawned", "run_id", runID, "pid", pid, "operation", operation, "timeout", s.Timeout)

	capture := newCaptureBuffer(s.maxOutput())
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		_, _ = io.Copy(capture, pr)
	}()

	exited := make(chan exit, 1)
	go func() {
		state, err := cmd.Process.Wait()
		exited <- exit{state: state, err: err}
	}()

	obs := observation{timeout: s.Timeout, exitCode: -1}
	terminated := true
	deadline := start.Add(s.Timeout)
	poll := s.pollInterval()
	timer := time.NewTimer(poll)
	defer timer.Stop()

	var decidedAt time.Time
	for decidedAt.IsZero() {
		now := time.Now()
		ex, got, expired := pollOnce(exited, now, deadline)
		switch {
		case got:
			decidedAt = now
			if ex.state == nil {
				s.discardGroup(cmd.Process, pr, drained, logger)
				return nil, &InfrastructureError{Op: "waiting for child", Err: ex.err}
			}
			obs.exited = true
			obs.exitCode = ex.state.ExitCode()
			if sig, ok := terminatingSignal(ex.state); ok {
				obs.signal = sig
			}
			// Kill anything the operation left behind in its group.
			if err := killProcessGroup(cmd.Process); err != nil {
				logger.Warn("killing leftover processes", "run_id", runID, "pid", pid, "error", err)
			}
			continue
		case expired:
			decidedAt = now
			logger.Warn("deadline reached, killing child", "run_id", runID, "pid", pid, "elapsed", now.Sub(start))
			terminated = s.terminate(cmd.Process, exited, logger)
			continue
		}

		if err := ctx.Err(); err != nil {
			s.terminate(cmd.Process, exited, logger)
			s.drain(pr, drained)
			return nil, fmt.Errorf("probe %s cancelled: %w", runID, err)
		}

		timer.Reset(min(poll, deadline.Sub(now)))
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	if !s.drain(pr, drained) {
		logger.Warn("output pipe still open after kill grace", "run_id", runID, "pid", pid)
	}

	elapsed := decidedAt.Sub(start)
	output, truncated := capture.snapshot()
	obs.output = output
	c := classify(obs)

	v := &verdict.Verdict{
		RunID:      runID,
		Operation:  operation,
		Kind:       c.kind,
		StartedAt:  start,
		Elapsed:    verdict.Duration(elapsed),
		Timeout:    verdict.Duration(s.Timeout),
		Payload:    c.payload,
		Failure:    c.failure,
		Reason:     c.reason,
		Output:     string(output),
		Truncated:  truncated,
		PID:        pid,
		ExitCode:   obs.exitCode,
		Signal:     obs.signal,
		Terminated: terminated,
	}
	logger.Info("probe decided", "run_id", runID, "kind", v.Kind, "elapsed", elapsed)
	return v, nil
}

// pollOnce reports a published exit, or else whether now is past the
// deadline. now is read before the receive, so an exit published by the time
// the deadline would be acted on wins over it.
func pollOnce(exited <-chan exit, now, deadline time.Time) (ex exit, got, expired bool) {
	select {
	case ex = <-exited:
		return ex, true, false
	default:
	}
	return exit{}, false, !now.Before(deadline)
}

// terminate kills the child's process group and waits at most KillGrace for
// the wait goroutine to confirm it. It reports whether the exit was seen.
func (s *Supervisor) terminate(p *os.Process, exited <-chan exit, logger *slog.Logger) bool {
	if err := killProcessGroup(p); err != nil {
		logger.Error("killing child", "pid", p.Pid, "error", err)
	}
	grace := time.NewTimer(s.killGrace())
	defer grace.Stop()
	select {
	case <-exited:
		return true
	case <-grace.C:
		logger.Error("child did not exit after kill", "pid", p.Pid, "grace", s.killGrace())
		return false
	}
}

// drain waits at most KillGrace for the output pipe to reach EOF, then
// closes the read end. It reports whether EOF was reached.
func (s *Supervisor) drain(pr *os.File, drained <-chan struct{}) bool {
	defer pr.Close()
	grace := time.NewTimer(s.killGrace())
	defer grace.Stop()
	select {
	case <-drained:
		return true
	case <-grace.C:
		return false
	}
}

// discardGroup kills whatever is left of the child's group and releases
// the pipe after a failed wait.
func (s *Supervisor) discardGroup(p *os.Process, pr *os.File, drained <-chan struct{}, logger *slog.Logger) {
	if err := killProcessGroup(p); err != nil {
		logger.Error("killing child", "pid", p.Pid, "error", err)
	}
	s.drain(pr, drained)
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return defaultPollInterval
}

func (s *Supervisor) killGrace() time.Duration {
	if s.KillGrace > 0 {
		return s.KillGrace
	}
	return defaultKillGrace
}

func (s *Supervisor) maxOutput() int {
	if s.MaxOutput > 0 {
		return s.MaxOutput
	}
	return defaultMaxOutput
}
