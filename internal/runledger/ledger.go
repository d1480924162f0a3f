package runledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"surveyforge/internal/common"
)

// Run status values recorded in the ledger
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// The ledger keeps only the most recent runs so the file stays small
const maxEntries = 200

// Entry is one pipeline run in the local ledger.
type Entry struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Years      []int     `json:"years"`
	Records    int       `json:"records"`
	Selections int       `json:"selections"`
	Warnings   int       `json:"warnings"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns the run duration as a time.Duration
func (e Entry) Duration() time.Duration {
	return time.Duration(e.DurationMS) * time.Millisecond
}

// Ledger records pipeline runs to a JSON file so `surveyforge runs` can
// show recent history without a store connection.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New creates a ledger at the default location under the user's
// application directory.
func New() (*Ledger, error) {
	dir, err := common.AppDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ledger directory: %w", err)
	}
	return &Ledger{path: filepath.Join(dir, "runs.json")}, nil
}

// NewAtPath creates a ledger backed by the given file
func NewAtPath(path string) *Ledger {
	return &Ledger{path: path}
}

// Append records a run, trimming the ledger to its retention cap
func (l *Ledger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	return l.write(entries)
}

// Entries returns recorded runs, newest first
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}

// Latest returns the most recent run, with found false for an empty
// ledger.
func (l *Ledger) Latest() (Entry, bool, error) {
	entries, err := l.Entries()
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[0], true, nil
}

func (l *Ledger) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run ledger: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse run ledger: %w", err)
	}
	return entries, nil
}

func (l *Ledger) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return os.WriteFile(l.path, data, common.FilePermissionSecure)
}
