package benchmark

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrRunNotFound is returned when no stored run matches an id.
var ErrRunNotFound = errors.New("run not found")

// Store defines the interface for storing benchmark runs.
type Store interface {
	Save(run Run) error
	Load(id string) (*Run, error)
	LoadLatest() (*Run, error)
	LoadAll() ([]Run, error)
	Close() error
}

// historyVersion is the layout version written by FileStore.
const historyVersion = 1

// historyFile is the on-disk layout of a FileStore. Files holding a bare
// JSON array of runs are still read.
type historyFile struct {
	Version int   `json:"version"`
	Runs    []Run `json:"runs"`
}

// FileStore keeps every run in one JSON document. It is safe for use by
// one process; concurrent processes may lose each other's saves.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates the parent directory of path if needed.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the history file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(run Run) error {
	if run.ID == "" {
		return errors.New("cannot save a run without an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.read()
	if err != nil {
		return err
	}
	for _, r := range runs {
		if r.ID == run.ID {
			return fmt.Errorf("run %s is already stored", run.ID)
		}
	}

	data, err := json.MarshalIndent(historyFile{Version: historyVersion, Runs: append(runs, run)}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	// Write-then-rename so an interrupted save never truncates history.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// LoadAll returns every stored run, oldest first.
func (s *FileStore) LoadAll() ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.read()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(runs, func(a, b Run) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *FileStore) read() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []Run{}, nil
	case err != nil:
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Run{}, nil
	}

	if data[0] == '[' {
		var runs []Run
		if err := json.Unmarshal(data, &runs); err != nil {
			return nil, fmt.Errorf("failed to decode history %s: %w", s.path, err)
		}
		return runs, nil
	}
	var doc historyFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode history %s: %w", s.path, err)
	}
	if doc.Version > historyVersion {
		return nil, fmt.Errorf("history %s has version %d; this build reads up to %d", s.path, doc.Version, historyVersion)
	}
	if doc.Runs == nil {
		doc.Runs = []Run{}
	}
	return doc.Runs, nil
}

// LoadLatest returns the newest run, or nil when the history is empty.
func (s *FileStore) LoadLatest() (*Run, error) {
	runs, err := s.LoadAll()
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[len(runs)-1], nil
}

// Load returns the run whose id equals id or, failing that, the only run
// whose id starts with it.
func (s *FileStore) Load(id string) (*Run, error) {
	runs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	return FindRun(runs, id)
}

func (s *FileStore) Close() error { return nil }

// FindRun resolves id against runs by exact match, then unique prefix.
func FindRun(runs []Run, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	var match *Run
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return match, nil
}
