package probe

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteResult_RoundTrip(t *testing.T) {
	payloads := []string{
		"AQID",
		"",
		"line one\nline two",
		"  padded  ",
		`quotes " and \ backslash`,
		"HANGCHECK-PROBE-ERR inside payload",
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		if err := WriteResult(&buf, Result{Kind: Succeeded, Payload: p}); err != nil {
			t.Fatalf("WriteResult(%q): %v", p, err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("WriteResult(%q) wrote %q, want exactly one line", p, buf.String())
		}
		got := ParseOutput(buf.Bytes())
		if got.Kind != Succeeded || got.Payload != p {
			t.Errorf("ParseOutput = %+v, want succeeded with %q", got, p)
		}
	}
}

func TestWriteResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, Result{Kind: Failed, Message: "no enclave"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), FailureMarker+" ") {
		t.Errorf("output = %q, want failure marker prefix", buf.String())
	}
	got := ParseOutput(buf.Bytes())
	if got.Kind != Failed || got.Message != "no enclave" {
		t.Errorf("ParseOutput = %+v", got)
	}
}

func TestWriteResult_NoResultIsRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, Result{}); err == nil {
		t.Fatal("expected error encoding a result without a kind")
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q for invalid result", buf.String())
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Result
	}{
		{"empty", "", Result{}},
		{"no marker", "hello\nworld\n", Result{}},
		{"success among logs", "starting\nHANGCHECK-PROBE-OK \"AQID\"\nbye\n", Result{Kind: Succeeded, Payload: "AQID"}},
		{"crlf", "HANGCHECK-PROBE-OK \"AQID\"\r\n", Result{Kind: Succeeded, Payload: "AQID"}},
		{"unquoted value taken verbatim", "HANGCHECK-PROBE-ERR disk full\n", Result{Kind: Failed, Message: "disk full"}},
		{"bare marker", "HANGCHECK-PROBE-OK\n", Result{Kind: Succeeded}},
		{"last marker wins", "HANGCHECK-PROBE-ERR \"first\"\nHANGCHECK-PROBE-OK \"second\"\n", Result{Kind: Succeeded, Payload: "second"}},
		{"marker must start the line", "log: HANGCHECK-PROBE-OK \"x\"\n", Result{}},
		{"longer token is not a marker", "HANGCHECK-PROBE-OKAY \"x\"\n", Result{}},
		{"no trailing newline", "HANGCHECK-PROBE-OK \"AQID\"", Result{Kind: Succeeded, Payload: "AQID"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOutput([]byte(tt.output))
			if got != tt.want {
				t.Errorf("ParseOutput(%q) = %+v, want %+v", tt.output, got, tt.want)
			}
		})
	}
}
