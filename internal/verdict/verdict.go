// Package verdict defines the classified outcome of one supervised probe
// and the evidence that backs it.
package verdict

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the classification of a probe.
type Kind string

const (
	// Success means the child exited 0 and reported a payload.
	Success Kind = "success"
	// Hang means the deadline passed while the child was still alive.
	Hang Kind = "hang"
	// Crash means the child was terminated by a signal.
	Crash Kind = "crash"
	// UnexpectedFailure covers every other decided state, including the
	// operation reporting its own error.
	UnexpectedFailure Kind = "unexpected_failure"
)

// Process exit statuses for the supervising binary.
const (
	ExitSuccess        = 0
	ExitUnexpected     = 1
	ExitHang           = 2
	ExitCrash          = 3
	ExitInfrastructure = 4
	ExitUsage          = 64
)

// ExitCode maps the kind to the supervisor's exit status.
func (k Kind) ExitCode() int {
	switch k {
	case Success:
		return ExitSuccess
	case Hang:
		return ExitHang
	case Crash:
		return ExitCrash
	default:
		return ExitUnexpected
	}
}

// Verdict is the single, immutable result of one supervisor invocation.
type Verdict struct {
	RunID     string    `json:"run_id"`
	Operation string    `json:"operation"`
	Kind      Kind      `json:"kind"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   Duration  `json:"elapsed"`
	Timeout   Duration  `json:"timeout"`

	// Payload is the value the operation returned (Success only).
	Payload string `json:"payload,omitempty"`
	// Failure is the error the operation reported through the failure marker.
	Failure string `json:"failure,omitempty"`
	// Reason is a short human explanation of why this kind was chosen.
	Reason string `json:"reason"`

	Output    string `json:"output"`
	Truncated bool   `json:"truncated,omitempty"`

	PID      int    `json:"pid"`
	ExitCode int    `json:"exit_code"`        // -1 when killed by a signal or never observed
	Signal   string `json:"signal,omitempty"` // e.g. "SIGABRT"

	// Terminated is false only for a Hang whose forced kill could not be
	// confirmed within the kill grace period.
	Terminated bool `json:"terminated"`
}

// Failed reports whether the verdict should make the supervisor exit non-zero.
func (v *Verdict) Failed() bool {
	return v.Kind != Success
}

// Duration marshals as a Go duration string ("1.5s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
