// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestNewStore tests store construction and path resolution
func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{
			name:        "valid path",
			path:        filepath.Join(t.TempDir(), "faucet.yaml"),
			expectError: false,
		},
		{
			name:        "empty path",
			path:        "",
			expectError: true,
		},
		{
			name:        "whitespace path",
			path:        "   ",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.path)
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !filepath.IsAbs(store.Path()) {
				t.Errorf("Path() = %q, want absolute path", store.Path())
			}
		})
	}
}

// TestStoreReadNotFound tests that reading a missing document returns
// ErrNotFound
func TestStoreReadNotFound(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.Read()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

// TestStoreReplaceRead tests the write-then-read roundtrip
func TestStoreReplaceRead(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "faucet.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := []byte("dps:\n  sw1:\n    dp_id: 1\n")
	if err := store.Replace(context.Background(), content); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read() = %q, want %q", got, content)
	}

	if store.LastReplace().IsZero() {
		t.Error("LastReplace() should be set after a successful Replace")
	}
}

// TestStoreReplaceIdempotent tests that re-committing identical content
// succeeds
func TestStoreReplaceIdempotent(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "faucet.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := []byte("vlans:\n  office:\n    vid: 100\n")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.Replace(ctx, content); err != nil {
			t.Fatalf("Replace() #%d error = %v", i, err)
		}
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read() = %q, want %q", got, content)
	}
}

// TestStoreReplaceOverwrites tests that Replace fully replaces longer
// previous content
func TestStoreReplaceOverwrites(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "faucet.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	long := []byte("dps:\n  sw1:\n    dp_id: 1\n  sw2:\n    dp_id: 2\n")
	short := []byte("dps: {}\n")

	if err := store.Replace(ctx, long); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := store.Replace(ctx, short); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, short) {
		t.Errorf("Read() = %q, want %q (no remnant of previous content)", got, short)
	}
}

// TestStoreReplaceFailure tests that a replace into a missing directory
// returns a StoreError
func TestStoreReplaceFailure(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "no", "such", "dir", "faucet.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = store.Replace(context.Background(), []byte("x: 1\n"))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Replace() error = %v, want *StoreError", err)
	}
	if storeErr.Op != "replace" {
		t.Errorf("StoreError.Op = %q, want %q", storeErr.Op, "replace")
	}
}

// TestStoreBackup tests that the previous content is preserved before a
// replace
func TestStoreBackup(t *testing.T) {
	dir := t.TempDir()
	backupPath := filepath.Join(dir, "faucet.yaml.bak")
	store, err := NewStore(filepath.Join(dir, "faucet.yaml"),
		StoreBackup(backupPath))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	first := []byte("version: 1\n")
	second := []byte("version: 2\n")

	// No previous content yet, backup must not be created
	if err := store.Replace(ctx, first); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if _, err := os.Stat(backupPath); !os.IsNotExist(err) {
		t.Error("backup should not exist after the first replace")
	}

	if err := store.Replace(ctx, second); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	backup, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.Equal(backup, first) {
		t.Errorf("backup = %q, want %q", backup, first)
	}
}

// TestStoreConcurrentReadReplace tests that readers racing with writers never
// observe a truncated, mixed, or missing document: every successful Read
// returns exactly one of the committed payloads, and once a document exists
// Read never reports it missing
func TestStoreConcurrentReadReplace(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "faucet.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const writers = 4
	contents := make([][]byte, writers)
	valid := make(map[string]bool, writers)
	for i := range contents {
		contents[i] = []byte(fmt.Sprintf("writer: %d\npadding: %s\n", i,
			bytes.Repeat([]byte{byte('a' + i)}, 4096)))
		valid[string(contents[i])] = true
	}

	ctx := context.Background()
	if err := store.Replace(ctx, contents[0]); err != nil {
		t.Fatalf("initial Replace() error = %v", err)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := store.Read()
				if err != nil {
					t.Errorf("Read() error = %v during concurrent replace", err)
					return
				}
				if !valid[string(got)] {
					t.Errorf("Read() observed %d bytes matching no committed document", len(got))
					return
				}
			}
		}()
	}

	var writersWg sync.WaitGroup
	for i := 0; i < writers; i++ {
		writersWg.Add(1)
		go func(i int) {
			defer writersWg.Done()
			for j := 0; j < 25; j++ {
				if err := store.Replace(ctx, contents[i]); err != nil {
					t.Errorf("Replace() writer %d error = %v", i, err)
					return
				}
			}
		}(i)
	}

	writersWg.Wait()
	close(stop)
	readers.Wait()
}

// TestStoreConcurrentReplace tests that concurrent writers never corrupt the
// document: after the dust settles the file holds exactly one writer's
// content
func TestStoreConcurrentReplace(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "faucet.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const writers = 8
	contents := make([][]byte, writers)
	for i := range contents {
		contents[i] = []byte(fmt.Sprintf("writer: %d\npadding: %s\n", i,
			bytes.Repeat([]byte{byte('a' + i)}, 512)))
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Replace(ctx, contents[i]); err != nil {
				t.Errorf("Replace() writer %d error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	for _, want := range contents {
		if bytes.Equal(got, want) {
			return
		}
	}
	t.Errorf("final content matches no writer: %q", got)
}
