package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/hangcheck/internal/probe"
	"github.com/deixis/hangcheck/internal/verdict"
)

type runParams struct {
	Operation string `json:"operation,omitempty" jsonschema:"operation to probe (see probe_operations). Defaults to the configured operation, or ecdh-p256."`
	Timeout   string `json:"timeout,omitempty" jsonschema:"deadline for the child as a Go duration (e.g. 10s). Defaults to the configured timeout."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	cfg, sup := h.snapshot()

	name := params.Operation
	if name == "" {
		name = cfg.OperationOr(probe.DefaultOperation)
	}
	op, err := lookup(cfg, name)
	if err != nil {
		return errorResult(err.Error())
	}

	if params.Timeout != "" {
		d, err := time.ParseDuration(params.Timeout)
		if err != nil || d <= 0 {
			return errorResult(fmt.Sprintf("invalid timeout %q: must be a positive duration", params.Timeout))
		}
		sup.Timeout = d
	}

	// Skip rather than spawn a child that can only fail.
	if !op.Available() {
		return textResult(fmt.Sprintf("Status: SKIPPED\nOperation: %s\n\n%s is not available on this machine; no child was started.\n", name, name))
	}

	sup.Logger = h.logger
	v, err := sup.Probe(ctx, name)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return errorResult(fmt.Sprintf("probe cancelled: %v", err))
		}
		return errorResult(fmt.Sprintf("probe failed: %v", err))
	}

	// Save results for probe_inspect.
	if err := h.store.Save(v); err != nil {
		h.logger.Warn("saving verdict", "run_id", v.RunID, "error", err)
	}

	return textResult(formatRun(v))
}

// formatRun is the compact verdict for the model. Child output is left to
// probe_inspect except for a short tail on failures.
func formatRun(v *verdict.Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", v.Kind.Label())
	fmt.Fprintf(&b, "Run: %s\n", v.RunID)
	fmt.Fprintf(&b, "Operation: %s\n", v.Operation)
	fmt.Fprintf(&b, "Elapsed: %s (timeout %s)\n", v.Elapsed, v.Timeout)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, v.Reason)

	switch v.Kind {
	case verdict.Success:
		fmt.Fprintf(&b, "Payload: %s\n", v.Payload)
	case verdict.UnexpectedFailure:
		if v.Failure != "" {
			fmt.Fprintf(&b, "Error: %s\n", v.Failure)
		}
	case verdict.Hang:
		if !v.Terminated {
			fmt.Fprintln(&b, "Warning: the child's exit was not confirmed after the kill.")
		}
	}

	if v.Failed() && v.Output != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Output (last lines):")
		for _, line := range lastLines(v.Output, outputTailLines) {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		fmt.Fprintf(&b, "\nUse probe_inspect with run_id %s for the full output.\n", v.RunID)
	}
	return b.String()
}

const outputTailLines = 10

func lastLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
