package verdict

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	muted     = color.New(color.FgHiBlack)
)

// Label is the upper-case banner word for the kind.
func (k Kind) Label() string {
	switch k {
	case Success:
		return "SUCCESS"
	case Hang:
		return "HANG"
	case Crash:
		return "CRASH"
	default:
		return "UNEXPECTED FAILURE"
	}
}

func (k Kind) color() *color.Color {
	switch k {
	case Success:
		return okColor
	case Hang:
		return warnColor
	default:
		return failColor
	}
}

// Format renders v for a terminal. Captured output is included for every
// non-success verdict, and for success only when verbose is set.
func Format(v *Verdict, verbose bool) string {
	var b []byte
	line := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
		b = append(b, '\n')
	}

	line("%s  %s", v.Kind.color().Sprint(v.Kind.Label()), v.Reason)
	line("")
	line("  operation  %s", v.Operation)
	line("  run        %s", muted.Sprint(v.RunID))
	line("  elapsed    %s (timeout %s)", v.Elapsed, v.Timeout)
	if v.PID != 0 {
		line("  pid        %d", v.PID)
	}
	switch {
	case v.Signal != "":
		line("  signal     %s", v.Signal)
	case v.ExitCode >= 0:
		line("  exit code  %d", v.ExitCode)
	}
	if v.Kind == Hang {
		if v.Terminated {
			line("  child      terminated")
		} else {
			line("  child      %s", failColor.Sprint("termination not confirmed"))
		}
	}
	if v.Payload != "" {
		line("  payload    %s", v.Payload)
	}
	if v.Failure != "" {
		line("  error      %s", v.Failure)
	}

	if v.Kind != Success || verbose {
		line("")
		if v.Output == "" {
			line("  %s", muted.Sprint("(no output captured)"))
		} else {
			line("  output:")
			for _, l := range strings.Split(strings.TrimRight(v.Output, "\n"), "\n") {
				line("    %s", l)
			}
			if v.Truncated {
				line("    %s", muted.Sprint("[output truncated]"))
			}
		}
	}

	return string(b)
}
