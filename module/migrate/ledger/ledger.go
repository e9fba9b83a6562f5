// Package ledger persists per-coordinate migration outcomes so reruns skip
// artifacts already delivered and resume after interruption. Semantics are
// at-least-once: a success record that fails to persist only means the
// artifact may be re-migrated, never lost.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// Status classifies a ledger entry.
type Status string

const (
	StatusMigrated Status = "migrated"
	StatusFailed   Status = "failed"
)

// Entry is one persisted outcome keyed by artifact coordinate.
type Entry struct {
	Key        string    `json:"key"`
	Status     Status    `json:"status"`
	Hash       string    `json:"hash,omitempty"`
	Repository string    `json:"repository,omitempty"`
	MigratedAt time.Time `json:"migratedAt,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	FailedAt   time.Time `json:"failedAt,omitempty"`
}

type fileFormat struct {
	Version     int              `json:"version"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Entries     map[string]Entry `json:"entries"`
}

// Ledger is the in-memory view of the records file. All operations are safe
// for concurrent use; writes are batched until Flush.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	dirty   bool
	logger  zerolog.Logger
}

// Open loads the records file at path, creating the directory if needed.
// An unreadable or corrupt file is logged and treated as empty, matching the
// favor-over-work policy: worst case some artifacts are re-migrated.
func Open(path string, logger zerolog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	l := &Ledger{
		path:    path,
		entries: make(map[string]Entry),
		logger:  logger.With().Str("component", "ledger").Str("path", path).Logger(),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to read migration records, starting empty")
		return l, nil
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to parse migration records, starting empty")
		return l, nil
	}
	if file.Entries != nil {
		l.entries = file.Entries
	}
	l.logger.Info().Int("records", len(l.entries)).Msg("Loaded migration records")
	return l, nil
}

// IsMigrated reports whether a success entry exists for key.
func (l *Ledger) IsMigrated(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && e.Status == StatusMigrated
}

// IsPermanentlyFailed reports whether a failure entry exists for key.
func (l *Ledger) IsPermanentlyFailed(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && e.Status == StatusFailed
}

// RecordSuccess writes a success entry for key. Idempotent: an existing
// success entry is never overwritten.
func (l *Ledger) RecordSuccess(key, contentHash, repository string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && e.Status == StatusMigrated {
		return
	}
	l.entries[key] = Entry{
		Key:        key,
		Status:     StatusMigrated,
		Hash:       contentHash,
		Repository: repository,
		MigratedAt: time.Now().UTC(),
	}
	l.dirty = true
}

// RecordFailure writes a failure entry for key, keeping only the latest
// failure. A prior success entry is never displaced by a failure.
func (l *Ledger) RecordFailure(key string, kind types.ErrorKind, attempts int, cause string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && e.Status == StatusMigrated {
		return
	}
	l.entries[key] = Entry{
		Key:       key,
		Status:    StatusFailed,
		Attempts:  attempts,
		LastError: cause,
		ErrorKind: kind.String(),
		FailedAt:  time.Now().UTC(),
	}
	l.dirty = true
}

// Get returns the entry for key.
func (l *Ledger) Get(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return e, ok
}

// Len returns the number of persisted outcomes.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ClearFailures drops every failure entry, enabling a retry-failed run.
// Returns the number of entries removed.
func (l *Ledger) ClearFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if e.Status == StatusFailed {
			delete(l.entries, key)
			removed++
		}
	}
	if removed > 0 {
		l.dirty = true
	}
	return removed
}

// Flush writes pending entries to disk atomically. A clean ledger is a no-op.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}

	file := fileFormat{
		Version:     1,
		LastUpdated: time.Now().UTC(),
		Entries:     l.entries,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode migration records: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write migration records: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace migration records: %w", err)
	}
	l.dirty = false
	return nil
}

// FilePath builds the per-project records path used by the engine, keeping
// one file per project so partial runs resume independently.
func FilePath(dir, project string) string {
	return filepath.Join(dir, fmt.Sprintf("migration-records-%s.json", project))
}
