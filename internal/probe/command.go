package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandOperation is the name under which a configured external command
// is registered.
const CommandOperation = "command"

// Command probes an external program. The payload is its trimmed stdout;
// a non-zero exit is reported as a recoverable failure carrying stderr.
type Command struct {
	Argv []string
}

// Available reports whether argv[0] resolves to an executable.
func (c Command) Available() bool {
	if len(c.Argv) == 0 {
		return false
	}
	_, err := exec.LookPath(c.Argv[0])
	return err == nil
}

// Run executes the command and waits for it. There is no timeout here; the
// supervisor's deadline bounds the whole child.
func (c Command) Run(ctx context.Context) (string, error) {
	if len(c.Argv) == 0 {
		return "", fmt.Errorf("empty argv")
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return "", fmt.Errorf("%s exited with code %d", c.Argv[0], exitErr.ExitCode())
			}
			return "", fmt.Errorf("%s exited with code %d: %s", c.Argv[0], exitErr.ExitCode(), msg)
		}
		return "", fmt.Errorf("executing %s: %w", c.Argv[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
