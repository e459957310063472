package supervisor

import (
	"fmt"
	"time"

	"github.com/deixis/hangcheck/internal/probe"
	"github.com/deixis/hangcheck/internal/verdict"
)

// observation is the raw evidence gathered about a decided child.
type observation struct {
	exited   bool // false means the deadline fired first
	signal   string
	exitCode int
	output   []byte
	timeout  time.Duration
}

// classification is what classify derives from an observation.
type classification struct {
	kind    verdict.Kind
	reason  string
	payload string
	failure string
}

// classify turns an observation into a verdict kind. It is a pure function
// of its input.
func classify(obs observation) classification {
	if !obs.exited {
		return classification{
			kind:   verdict.Hang,
			reason: fmt.Sprintf("no result within %s", obs.timeout),
		}
	}
	if obs.signal != "" {
		return classification{
			kind:   verdict.Crash,
			reason: "terminated by " + obs.signal,
		}
	}

	res := probe.ParseOutput(obs.output)
	switch {
	case obs.exitCode == 0 && res.Kind == probe.Succeeded:
		return classification{
			kind:    verdict.Success,
			reason:  "operation completed",
			payload: res.Payload,
		}
	case res.Kind == probe.Failed:
		reason := "operation reported an error"
		if obs.exitCode == 0 {
			reason = "failure marker with exit status 0"
		}
		return classification{
			kind:    verdict.UnexpectedFailure,
			reason:  reason,
			failure: res.Message,
		}
	case res.Kind == probe.Succeeded:
		return classification{
			kind:   verdict.UnexpectedFailure,
			reason: fmt.Sprintf("success marker but exit status %d", obs.exitCode),
		}
	default:
		return classification{
			kind:   verdict.UnexpectedFailure,
			reason: fmt.Sprintf("exit status %d without a result marker", obs.exitCode),
		}
	}
}
