package supervisor

import (
	"testing"
	"time"

	"github.com/deixis/hangcheck/internal/verdict"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		obs         observation
		wantKind    verdict.Kind
		wantPayload string
		wantFailure string
	}{
		{
			name:     "deadline reached",
			obs:      observation{exited: false, exitCode: -1, output: []byte("partial")},
			wantKind: verdict.Hang,
		},
		{
			name:     "deadline reached with success marker still pending",
			obs:      observation{exited: false, exitCode: -1, output: []byte("HANGCHECK-PROBE-OK \"x\"\n")},
			wantKind: verdict.Hang,
		},
		{
			name:     "killed by signal",
			obs:      observation{exited: true, signal: "SIGSEGV", exitCode: -1},
			wantKind: verdict.Crash,
		},
		{
			name:     "killed by signal after success marker",
			obs:      observation{exited: true, signal: "SIGABRT", exitCode: -1, output: []byte("HANGCHECK-PROBE-OK \"x\"\n")},
			wantKind: verdict.Crash,
		},
		{
			name:        "success",
			obs:         observation{exited: true, output: []byte("noise\nHANGCHECK-PROBE-OK \"AQID\"\n")},
			wantKind:    verdict.Success,
			wantPayload: "AQID",
		},
		{
			name:        "operation error",
			obs:         observation{exited: true, exitCode: 1, output: []byte("HANGCHECK-PROBE-ERR \"device busy\"\n")},
			wantKind:    verdict.UnexpectedFailure,
			wantFailure: "device busy",
		},
		{
			name:        "failure marker with zero exit",
			obs:         observation{exited: true, output: []byte("HANGCHECK-PROBE-ERR \"odd\"\n")},
			wantKind:    verdict.UnexpectedFailure,
			wantFailure: "odd",
		},
		{
			name:     "success marker with non-zero exit",
			obs:      observation{exited: true, exitCode: 3, output: []byte("HANGCHECK-PROBE-OK \"x\"\n")},
			wantKind: verdict.UnexpectedFailure,
		},
		{
			name:     "zero exit without marker",
			obs:      observation{exited: true, output: []byte("hello\n")},
			wantKind: verdict.UnexpectedFailure,
		},
		{
			name:     "non-zero exit without marker",
			obs:      observation{exited: true, exitCode: 2, output: []byte("panic: boom\n")},
			wantKind: verdict.UnexpectedFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.obs.timeout = time.Second
			got := classify(tt.obs)
			if got.kind != tt.wantKind {
				t.Errorf("kind = %s, want %s (reason %q)", got.kind, tt.wantKind, got.reason)
			}
			if got.payload != tt.wantPayload {
				t.Errorf("payload = %q, want %q", got.payload, tt.wantPayload)
			}
			if got.failure != tt.wantFailure {
				t.Errorf("failure = %q, want %q", got.failure, tt.wantFailure)
			}
			if got.reason == "" {
				t.Error("reason is empty")
			}
		})
	}
}
