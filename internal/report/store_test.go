package report

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/deixis/hangcheck/internal/verdict"
)

func newVerdict(id string) *verdict.Verdict {
	return &verdict.Verdict{
		RunID:      id,
		Operation:  "ecdh-p256",
		Kind:       verdict.Hang,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:    verdict.Duration(10 * time.Second),
		Timeout:    verdict.Duration(10 * time.Second),
		Reason:     "no result within 10s",
		Output:     "partial\n",
		PID:        4242,
		ExitCode:   -1,
		Terminated: true,
	}
}

func newDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	s := NewDiskStore()
	t.Cleanup(func() { _ = s.Remove() })
	return s
}

func TestDiskStore_SaveLoad(t *testing.T) {
	s := newDiskStore(t)
	want := newVerdict("run-1")
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Kind != want.Kind || got.Output != want.Output || got.Elapsed != want.Elapsed || !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestDiskStore_NotFound(t *testing.T) {
	s := newDiskStore(t)
	_, err := s.Load("missing")
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_RejectsPathRunIDs(t *testing.T) {
	s := newDiskStore(t)
	for _, id := range []string{"", "../etc/passwd", "a/b"} {
		if err := s.Save(newVerdict(id)); err == nil {
			t.Errorf("Save(%q) succeeded, want error", id)
		}
		if _, err := s.Load(id); err == nil {
			t.Errorf("Load(%q) succeeded, want error", id)
		}
	}
}

func TestDiskStore_Remove(t *testing.T) {
	s := NewDiskStore()
	if err := s.Save(newVerdict("run-1")); err != nil {
		t.Fatal(err)
	}
	dir := s.Dir()
	if dir == "" {
		t.Fatal("Dir is empty after Save")
	}
	if err := s.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory %s still exists", dir)
	}
}

// countingStore records backing loads.
type countingStore struct {
	Store
	loads int
}

func (c *countingStore) Load(runID string) (*verdict.Verdict, error) {
	c.loads++
	return c.Store.Load(runID)
}

func newVerdictWithOutput(id string, n int) *verdict.Verdict {
	v := newVerdict(id)
	v.Output = strings.Repeat("x", n)
	return v
}

func mustSave(t *testing.T, s Store, vs ...*verdict.Verdict) {
	t.Helper()
	for _, v := range vs {
		if err := s.Save(v); err != nil {
			t.Fatalf("Save(%s): %v", v.RunID, err)
		}
	}
}

func TestLRUStore_EvictsLeastRecentByBytes(t *testing.T) {
	back := &countingStore{Store: newDiskStore(t)}
	// Room for two 1000-byte outputs but not three.
	s := NewLRUStore(3000, back)

	mustSave(t, s, newVerdictWithOutput("a", 1000), newVerdictWithOutput("b", 1000), newVerdictWithOutput("c", 1000))
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if s.Bytes() > 3000 {
		t.Errorf("Bytes = %d, over the 3000 budget", s.Bytes())
	}

	// "c" and "b" are cached.
	for _, id := range []string{"c", "b"} {
		if _, err := s.Load(id); err != nil {
			t.Fatal(err)
		}
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0 for cached entries", back.loads)
	}

	// "a" was evicted and comes from disk.
	v, err := s.Load("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Output) != 1000 {
		t.Errorf("len(Output) = %d, want 1000", len(v.Output))
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2 after promotion", s.Len())
	}
}

func TestLRUStore_LargeVerdictEvictsSeveralSmall(t *testing.T) {
	s := NewLRUStore(3000, newDiskStore(t))
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		mustSave(t, s, newVerdictWithOutput(id, 0))
	}
	if s.Len() != 5 {
		t.Fatalf("Len = %d, want 5 small verdicts cached", s.Len())
	}

	mustSave(t, s, newVerdictWithOutput("big", 2000))
	if s.Bytes() > 3000 {
		t.Errorf("Bytes = %d, over the 3000 budget", s.Bytes())
	}
	if s.Len() >= 5 {
		t.Errorf("Len = %d, want small verdicts evicted to make room", s.Len())
	}
	if _, ok := s.items["big"]; !ok {
		t.Error("the newest verdict should stay cached")
	}
	if _, ok := s.items["s1"]; ok {
		t.Error("the oldest verdict should be evicted first")
	}
}

func TestLRUStore_OversizeVerdictWritesThrough(t *testing.T) {
	back := &countingStore{Store: newDiskStore(t)}
	s := NewLRUStore(1000, back)

	mustSave(t, s, newVerdictWithOutput("huge", 5000))
	if s.Len() != 0 || s.Bytes() != 0 {
		t.Errorf("Len = %d, Bytes = %d; want nothing cached", s.Len(), s.Bytes())
	}
	v, err := s.Load("huge")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Output) != 5000 {
		t.Errorf("len(Output) = %d, want 5000", len(v.Output))
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
}

func TestLRUStore_ResaveRecharges(t *testing.T) {
	s := NewLRUStore(DefaultCacheBytes, newDiskStore(t))
	mustSave(t, s, newVerdictWithOutput("a", 4000))
	before := s.Bytes()
	mustSave(t, s, newVerdictWithOutput("a", 100))
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if got := before - s.Bytes(); got != 3900 {
		t.Errorf("Bytes dropped by %d, want 3900", got)
	}
}

func TestLRUStore_ZeroBudgetDisablesCache(t *testing.T) {
	back := &countingStore{Store: newDiskStore(t)}
	s := NewLRUStore(0, back)
	mustSave(t, s, newVerdict("a"))
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
}
