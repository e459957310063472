package probe

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Marker prefixes. Each marker is written at the start of its own line and
// is followed by a single space and a strconv-quoted value.
const (
	SuccessMarker = "HANGCHECK-PROBE-OK"
	FailureMarker = "HANGCHECK-PROBE-ERR"
)

// ResultKind tags a Result.
type ResultKind int

const (
	// NoResult means the output carried no marker at all.
	NoResult ResultKind = iota
	// Succeeded means the operation returned a payload.
	Succeeded
	// Failed means the operation returned an error.
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

// Result is the outcome a probe runner reports across the process boundary.
type Result struct {
	Kind    ResultKind
	Payload string // set when Kind == Succeeded
	Message string // set when Kind == Failed
}

// WriteResult encodes r as a single marker line.
func WriteResult(w io.Writer, r Result) error {
	var line string
	switch r.Kind {
	case Succeeded:
		line = SuccessMarker + " " + strconv.Quote(r.Payload) + "\n"
	case Failed:
		line = FailureMarker + " " + strconv.Quote(r.Message) + "\n"
	default:
		return fmt.Errorf("cannot encode result of kind %s", r.Kind)
	}
	_, err := io.WriteString(w, line)
	return err
}

// ParseOutput scans combined child output for marker lines. The last
// marker wins, so stray log lines before it do not matter. A value that is
// not a valid quoted string is taken verbatim.
func ParseOutput(output []byte) Result {
	var res Result
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if v, ok := cutMarker(line, SuccessMarker); ok {
			res = Result{Kind: Succeeded, Payload: v}
		} else if v, ok := cutMarker(line, FailureMarker); ok {
			res = Result{Kind: Failed, Message: v}
		}
	}
	return res
}

func cutMarker(line, marker string) (string, bool) {
	rest, ok := strings.CutPrefix(line, marker)
	if !ok {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	if rest[0] != ' ' {
		// e.g. "HANGCHECK-PROBE-OKAY": a different token.
		return "", false
	}
	rest = rest[1:]
	if v, err := strconv.Unquote(rest); err == nil {
		return v, true
	}
	return rest, true
}
