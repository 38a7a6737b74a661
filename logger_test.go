// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
)

// TestLogLevel_String tests the string representation of log levels
func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevelNone, "NONE"},
		{LogLevel(42), "UNKNOWN(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestDefaultLoggerLevelFiltering tests that messages below the configured
// level are suppressed
func TestDefaultLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	ctx := context.Background()
	logger := NewDefaultLogger(LogLevelWarn)

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be suppressed at LogLevelWarn")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be suppressed at LogLevelWarn")
	}
	if !strings.Contains(output, "[WARN] warn message") {
		t.Errorf("Warn message missing from output: %q", output)
	}
	if !strings.Contains(output, "[ERROR] error message") {
		t.Errorf("Error message missing from output: %q", output)
	}
}

// TestDefaultLoggerKeyValueFormatting tests structured key-value output
func TestDefaultLoggerKeyValueFormatting(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	logger := NewDefaultLogger(LogLevelInfo)
	logger.Info(context.Background(), "commit", "path", "/etc/faucet.yaml", "bytes", 42)

	output := buf.String()
	if !strings.Contains(output, "path=/etc/faucet.yaml") {
		t.Errorf("missing key-value pair in output: %q", output)
	}
	if !strings.Contains(output, "bytes=42") {
		t.Errorf("missing key-value pair in output: %q", output)
	}
}

// TestDefaultLoggerOddKeyValues tests that a missing value is marked
func TestDefaultLoggerOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	logger := NewDefaultLogger(LogLevelInfo)
	logger.Info(context.Background(), "message", "orphan")

	if !strings.Contains(buf.String(), "orphan=<MISSING>") {
		t.Errorf("odd key-value list not marked: %q", buf.String())
	}
}

// TestSanitizeLogValue tests log injection prevention
func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{
			name:     "plain string",
			input:    "hello",
			expected: "hello",
		},
		{
			name:     "integer",
			input:    42,
			expected: "42",
		},
		{
			name:     "newline injection",
			input:    "user\n[ERROR] fake entry",
			expected: "user [ERROR] fake entry",
		},
		{
			name:     "carriage return and tab",
			input:    "a\rb\tc",
			expected: "a b c",
		},
		{
			name:     "ANSI escape sequence",
			input:    "x\x1b[31mred",
			expected: "x.[31mred",
		},
		{
			name:     "control characters",
			input:    "a\x00b\x7fc",
			expected: "a.b.c",
		},
		{
			name:     "normal unicode preserved",
			input:    "configuración",
			expected: "configuración",
		},
		{
			name:     "zero-width characters stripped",
			input:    "a​b",
			expected: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogValue(tt.input); got != tt.expected {
				t.Errorf("sanitizeLogValue() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestSanitizeLogValueTruncation tests that oversized values are truncated
func TestSanitizeLogValueTruncation(t *testing.T) {
	input := strings.Repeat("x", MaxLogValueLength+100)
	got := sanitizeLogValue(input)
	if !strings.HasSuffix(got, "...[TRUNCATED]") {
		t.Error("oversized value should be truncated")
	}
	if len(got) > MaxLogValueLength+20 {
		t.Errorf("truncated value too long: %d", len(got))
	}
}

// TestNoOpLoggerDiscards tests that the no-op logger produces no output
func TestNoOpLoggerDiscards(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	ctx := context.Background()
	logger := &NoOpLogger{}
	logger.Debug(ctx, "a")
	logger.Info(ctx, "b")
	logger.Warn(ctx, "c")
	logger.Error(ctx, "d")

	if buf.Len() != 0 {
		t.Errorf("NoOpLogger produced output: %q", buf.String())
	}
}
