package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/deixis/hangcheck/internal/verdict"
)

// DiskStore writes verdicts as JSON files to a lazily-created temp directory.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a new DiskStore. The underlying temp directory
// is created lazily on the first Save.
func NewDiskStore() *DiskStore {
	return &DiskStore{}
}

// Save writes a verdict as a JSON file to disk.
func (s *DiskStore) Save(v *verdict.Verdict) error {
	if err := checkRunID(v.RunID); err != nil {
		return err
	}
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling verdict %s: %w", v.RunID, err)
	}
	path := filepath.Join(dir, v.RunID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing verdict %s: %w", v.RunID, err)
	}
	return nil
}

// Load reads a verdict from disk.
func (s *DiskStore) Load(runID string) (*verdict.Verdict, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, runID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound{RunID: runID}
		}
		return nil, fmt.Errorf("reading verdict %s: %w", runID, err)
	}
	var v verdict.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshalling verdict %s: %w", runID, err)
	}
	return &v, nil
}

// Dir returns the backing directory, or "" before the first Save or Load.
func (s *DiskStore) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// ErrNotFound is returned when no verdict exists for a run id.
type ErrNotFound struct {
	RunID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no verdict for run %s", e.RunID)
}

// checkRunID keeps run ids from escaping the store directory.
func checkRunID(runID string) error {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "hangcheck-verdicts-*")
	if err != nil {
		return "", fmt.Errorf("creating verdict directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}

// Remove deletes the backing directory and everything in it.
func (s *DiskStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
