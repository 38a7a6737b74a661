// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Store.Read when no configuration document has
// been provisioned yet. The gNMI layer maps it to codes.NotFound.
var ErrNotFound = errors.New("configuration file does not exist")

// UnsupportedPathError is returned when a request addresses any node other
// than the document root.
//
// The agent models the whole configuration file as a single node at "/";
// every other path is a client error, never silently coerced to the root.
type UnsupportedPathError struct {
	// Path is the rejected path in text form, kept for diagnostics
	Path string
}

// Error implements the error interface
func (e *UnsupportedPathError) Error() string {
	return fmt.Sprintf("agent: unsupported path %q: only the root path \"/\" is addressable", e.Path)
}

// StoreError represents a filesystem failure in the configuration store with
// operation context.
//
// A StoreError from Replace means the previously committed document is still
// authoritative and unmodified; the gNMI layer maps it to codes.Internal.
type StoreError struct {
	// Op is the store operation that failed ("read", "replace", "backup")
	Op string

	// Path is the configuration file path
	Path string

	// Err is the underlying filesystem error
	Err error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("agent: %s %s failed: %s", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Outcome is the tri-state result of asking the managed daemon to adopt a
// newly committed configuration.
type Outcome int

const (
	// Accepted means the daemon confirmed it is running the new configuration
	Accepted Outcome = iota

	// Rejected means the daemon reported a load error for the new configuration
	Rejected

	// TimedOut means the daemon did not confirm within the bounded wait
	TimedOut
)

// String returns the string representation of an Outcome
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("unknown(%d)", o)
	}
}

// ReloadResult is the full observation from a reload notification.
//
// It is produced fresh per Set call and never persisted. A non-Accepted
// result does not roll back the store: the new document is already durable on
// disk, only the daemon's adoption of it is unconfirmed. Keeping the two
// results separate lets an operator retry the reload out-of-band without
// re-submitting the document.
type ReloadResult struct {
	// Outcome is the tri-state reload result
	Outcome Outcome

	// Reason carries the daemon's load error for Rejected outcomes
	Reason string

	// Elapsed is the time spent waiting for confirmation
	Elapsed time.Duration
}

// Err returns nil for Accepted results and a descriptive error otherwise.
//
// Example:
//
//	result := reloader.Notify(ctx, content)
//	if err := result.Err(); err != nil {
//	    return err
//	}
func (r ReloadResult) Err() error {
	switch r.Outcome {
	case Accepted:
		return nil
	case Rejected:
		return fmt.Errorf("agent: reload rejected by daemon: %s", r.Reason)
	case TimedOut:
		return fmt.Errorf("agent: reload not confirmed within %s", r.Elapsed)
	default:
		return fmt.Errorf("agent: reload outcome unknown")
	}
}
