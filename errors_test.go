// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"errors"
	"os"
	"testing"
	"time"
)

// TestUnsupportedPathError_Error tests the Error() method
func TestUnsupportedPathError_Error(t *testing.T) {
	err := &UnsupportedPathError{Path: "/interfaces/eth0"}
	expected := `agent: unsupported path "/interfaces/eth0": only the root path "/" is addressable`
	if got := err.Error(); got != expected {
		t.Errorf("Error() = %q, want %q", got, expected)
	}
}

// TestStoreError_Error tests the Error() method and unwrapping
func TestStoreError_Error(t *testing.T) {
	inner := os.ErrPermission
	err := &StoreError{Op: "replace", Path: "/etc/faucet.yaml", Err: inner}

	expected := "agent: replace /etc/faucet.yaml failed: permission denied"
	if got := err.Error(); got != expected {
		t.Errorf("Error() = %q, want %q", got, expected)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("errors.Is() should unwrap to the underlying error")
	}
}

// TestOutcome_String tests the string representation of reload outcomes
func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{Accepted, "accepted"},
		{Rejected, "rejected"},
		{TimedOut, "timed out"},
		{Outcome(42), "unknown(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.outcome.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestReloadResult_Err tests folding reload results into errors
func TestReloadResult_Err(t *testing.T) {
	tests := []struct {
		name    string
		result  ReloadResult
		wantErr bool
	}{
		{
			name:   "accepted",
			result: ReloadResult{Outcome: Accepted},
		},
		{
			name:    "rejected with reason",
			result:  ReloadResult{Outcome: Rejected, Reason: "load error"},
			wantErr: true,
		},
		{
			name:    "timed out",
			result:  ReloadResult{Outcome: TimedOut, Elapsed: 2 * time.Minute},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Err()
			if tt.wantErr && err == nil {
				t.Error("Err() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
		})
	}
}
