// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Store owns filesystem access to the managed configuration document.
//
// No other component touches the file directly. Read and Replace are safe for
// concurrent use: Replace writes a temporary file in the same directory,
// syncs it durably and renames it over the target path, so a concurrent Read
// observes either the fully-old or fully-new content, never a mix and never a
// transient "file missing" state.
//
// Concurrent Replace calls are serialized with a single mutex around the
// write-temp-then-rename sequence. Replace is idempotent: re-committing
// identical content is harmless, so callers may retry freely after transport
// failures.
//
// Example:
//
//	store, err := agent.NewStore("/etc/faucet.yaml",
//	    agent.StoreBackup("/etc/faucet.yaml.bak"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	content, err := store.Read()
type Store struct {
	// path is the absolute configuration file path
	path string

	// backupPath preserves the previous content before each replace
	// (best-effort, empty = disabled)
	backupPath string

	// mu serializes writers; readers need no lock since rename is atomic
	mu sync.Mutex

	// lastReplace tracks the agent's own writes so the file watcher can tell
	// them apart from out-of-band edits
	lastReplaceMu sync.Mutex
	lastReplace   time.Time

	logger Logger
}

// NewStore creates a Store for the given configuration file path.
//
// The file does not need to exist yet; Read returns ErrNotFound until the
// first Replace (or external provisioning) creates it. The path is made
// absolute so that comparisons against paths reported by the managed daemon
// are meaningful.
func NewStore(path string, opts ...func(*Store)) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("configuration file path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration file path: %w", err)
	}

	store := &Store{
		path:   abs,
		logger: &NoOpLogger{},
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// StoreBackup enables a best-effort backup of the previous content at the
// given side location before each replace.
//
// A failed backup is logged but never blocks the replace; the backup is an
// operator convenience, not a correctness requirement.
func StoreBackup(path string) func(*Store) {
	return func(s *Store) {
		s.backupPath = path
	}
}

// StoreLogger configures a custom logger for the store
func StoreLogger(logger Logger) func(*Store) {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Path returns the absolute configuration file path
func (s *Store) Path() string {
	return s.path
}

// Read returns the current committed content of the configuration document.
//
// Returns ErrNotFound if no document exists yet, or a *StoreError for any
// other read failure.
func (s *Store) Read() ([]byte, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}
	return content, nil
}

// Replace atomically replaces the configuration document with newContent.
//
// The new content is written to a temporary file in the same directory,
// synced, and renamed over the target path. On failure the temporary file is
// removed and the previously committed document remains authoritative and
// unmodified. The committed content is read back and verified so that a
// successful return really means the bytes are on disk.
//
// Only one Replace runs at a time; the fairness of the lock is whatever
// sync.Mutex provides.
func (s *Store) Replace(ctx context.Context, newContent []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backup(ctx)

	if err := atomic.WriteFile(s.path, bytes.NewReader(newContent)); err != nil {
		return &StoreError{Op: "replace", Path: s.path, Err: err}
	}

	// Verify the committed bytes
	committed, err := os.ReadFile(s.path)
	if err != nil {
		return &StoreError{Op: "replace", Path: s.path, Err: err}
	}
	if !bytes.Equal(committed, newContent) {
		return &StoreError{Op: "replace", Path: s.path,
			Err: fmt.Errorf("content verification failed after write (%d bytes on disk, %d expected)",
				len(committed), len(newContent))}
	}

	s.lastReplaceMu.Lock()
	s.lastReplace = time.Now()
	s.lastReplaceMu.Unlock()

	s.logger.Debug(ctx, "configuration document replaced",
		"path", s.path,
		"bytes", len(newContent))

	return nil
}

// LastReplace returns the time of the store's most recent successful Replace,
// or the zero time if the store has not written yet.
func (s *Store) LastReplace() time.Time {
	s.lastReplaceMu.Lock()
	defer s.lastReplaceMu.Unlock()
	return s.lastReplace
}

// backup preserves the current content at the backup path. Best-effort:
// failures are logged and swallowed. Caller must hold s.mu.
func (s *Store) backup(ctx context.Context) {
	if s.backupPath == "" {
		return
	}

	current, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn(ctx, "backup skipped, could not read current content",
				"path", s.path,
				"error", err.Error())
		}
		return
	}

	if err := atomic.WriteFile(s.backupPath, bytes.NewReader(current)); err != nil {
		s.logger.Warn(ctx, "backup failed, continuing with replace",
			"backup", s.backupPath,
			"error", err.Error())
	}
}
