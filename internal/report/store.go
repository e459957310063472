// Package report keeps verdicts from earlier probes so they can be looked
// up again by run id. Storage is session-scoped: an in-memory LRU in front
// of a lazily created temp directory.
package report

import "github.com/deixis/hangcheck/internal/verdict"

// Store persists and retrieves verdicts.
type Store interface {
	Save(v *verdict.Verdict) error
	Load(runID string) (*verdict.Verdict, error)
}
