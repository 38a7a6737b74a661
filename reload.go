// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	gpsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// Default reload behavior
const (
	// DefaultReloadTimeout bounds the wait for the daemon to confirm a reload
	DefaultReloadTimeout = 120 * time.Second

	// DefaultPollInterval is the delay between status polls while waiting
	DefaultPollInterval = 1 * time.Second
)

// Reloader notifies the managed daemon that the configuration document
// changed and observes its acceptance or rejection.
//
// Notify is invoked only after the store has durably committed the new
// content. The agent never retries a reload on its own: a Rejected or
// TimedOut result is surfaced to the Set caller, who can retry the reload
// out-of-band without re-submitting the document.
type Reloader interface {
	Notify(ctx context.Context, content []byte) ReloadResult
}

// NopReloader accepts every reload immediately without contacting anything.
//
// Useful when the managed daemon watches the configuration file itself and no
// confirmation is wanted, and as the safe default for tests.
type NopReloader struct{}

// Notify reports the reload as accepted
func (NopReloader) Notify(_ context.Context, _ []byte) ReloadResult {
	return ReloadResult{Outcome: Accepted}
}

// ControllerReloader signals the managed daemon to reload and confirms the
// reload through the daemon's Prometheus status endpoint.
//
// The signal step sends SIGHUP to every process listening on the daemon's
// status port (the port doubles as the process locator, the same convention
// the FAUCET agent uses). With NoSignal the signal is skipped and the daemon
// is expected to pick up the file on its own (e.g. a stat-based auto-reload);
// confirmation still happens through the status endpoint.
//
// Confirmation means: the daemon's announced config hash equals the hash of
// the pushed content, no load error is reported, and the fraction of applied
// datapaths is at least MinApplied. Polling stops at Timeout.
type ControllerReloader struct {
	// Status scrapes the daemon's configuration state
	Status *StatusClient

	// SignalPort locates the daemon process (TCP listen port)
	SignalPort int

	// NoSignal skips the SIGHUP and relies on the daemon's own file watching
	NoSignal bool

	// Timeout bounds the whole confirmation wait (default: 120s)
	Timeout time.Duration

	// PollInterval is the delay between status polls (default: 1s)
	PollInterval time.Duration

	// MinApplied is the datapath fraction to wait for (default: 0.0)
	MinApplied float64

	// ConfigPath, when set, is compared against the daemon's announced config
	// file so path mismatches show up in the logs
	ConfigPath string

	logger Logger
}

// NewControllerReloader creates a ControllerReloader confirming through the
// given status client.
//
// Example:
//
//	status, _ := agent.NewStatusClient("http://localhost:9302")
//	reloader := agent.NewControllerReloader(status,
//	    agent.SignalPort(9302),
//	    agent.ReloadTimeout(2*time.Minute))
func NewControllerReloader(status *StatusClient, opts ...func(*ControllerReloader)) *ControllerReloader {
	r := &ControllerReloader{
		Status:       status,
		Timeout:      DefaultReloadTimeout,
		PollInterval: DefaultPollInterval,
		logger:       &NoOpLogger{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SignalPort sets the TCP port used to locate the daemon process for SIGHUP
func SignalPort(port int) func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		r.SignalPort = port
	}
}

// NoSignal disables the SIGHUP; the daemon is expected to watch the file itself
func NoSignal() func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		r.NoSignal = true
	}
}

// ReloadTimeout bounds the wait for reload confirmation (default: 120s)
func ReloadTimeout(timeout time.Duration) func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		r.Timeout = timeout
	}
}

// PollInterval sets the delay between status polls (default: 1s)
func PollInterval(interval time.Duration) func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		r.PollInterval = interval
	}
}

// MinApplied sets the fraction of datapaths that must report the new
// configuration before the reload counts as accepted (default: 0.0)
func MinApplied(fraction float64) func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		r.MinApplied = fraction
	}
}

// ConfigPath sets the agent-side configuration file path for mismatch warnings
func ConfigPath(path string) func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		r.ConfigPath = path
	}
}

// ReloaderLogger configures a custom logger for the reloader
func ReloaderLogger(logger Logger) func(*ControllerReloader) {
	return func(r *ControllerReloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// log returns the configured logger, or a no-op one for zero-value literals
func (r *ControllerReloader) log() Logger {
	if r.logger == nil {
		return &NoOpLogger{}
	}
	return r.logger
}

// Notify signals the daemon (unless NoSignal) and waits for it to confirm the
// new content, within the bounded Timeout.
func (r *ControllerReloader) Notify(ctx context.Context, content []byte) ReloadResult {
	start := time.Now()

	if !r.NoSignal {
		if err := r.signal(ctx); err != nil {
			r.log().Error(ctx, "reload signal failed",
				"port", r.SignalPort,
				"error", err.Error())
			return ReloadResult{
				Outcome: Rejected,
				Reason:  fmt.Sprintf("failed to signal daemon: %s", err),
				Elapsed: time.Since(start),
			}
		}
		r.log().Debug(ctx, "reload signal sent", "port", r.SignalPort)
	}

	// A zero-value literal is a valid construction path; fall back to the
	// defaults rather than an instant deadline or a ticker panic
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultReloadTimeout
	}
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	warnedPath := false
	for {
		status, err := r.Status.Fetch(ctx)
		if err != nil {
			// The daemon may be mid-restart; keep polling until the deadline
			r.log().Debug(ctx, "status fetch failed, still waiting",
				"error", err.Error())
		} else {
			if !warnedPath && r.ConfigPath != "" {
				if file := status.ConfigFile(); file != "" {
					if abs, aerr := filepath.Abs(file); aerr == nil && abs != r.ConfigPath {
						r.log().Warn(ctx, "daemon config file may not be the managed file",
							"daemon_file", file,
							"managed_file", r.ConfigPath)
						warnedPath = true
					}
				}
			}

			ok, rejected, reason := status.Confirms(content, r.MinApplied)
			if rejected {
				return ReloadResult{Outcome: Rejected, Reason: reason, Elapsed: time.Since(start)}
			}
			if ok {
				r.log().Info(ctx, "daemon confirmed new configuration",
					"elapsed", time.Since(start).String())
				return ReloadResult{Outcome: Accepted, Elapsed: time.Since(start)}
			}
		}

		select {
		case <-ctx.Done():
			return ReloadResult{
				Outcome: TimedOut,
				Reason:  ctx.Err().Error(),
				Elapsed: time.Since(start),
			}
		case <-deadline.C:
			return ReloadResult{Outcome: TimedOut, Elapsed: time.Since(start)}
		case <-ticker.C:
		}
	}
}

// signal sends SIGHUP to every process listening on SignalPort.
func (r *ControllerReloader) signal(ctx context.Context) error {
	if r.SignalPort <= 0 || r.SignalPort > 65535 {
		return fmt.Errorf("invalid signal port: %d", r.SignalPort)
	}

	conns, err := gpsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return fmt.Errorf("failed to list TCP listeners: %w", err)
	}

	signaled := 0
	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(r.SignalPort) || conn.Pid <= 0 {
			continue
		}
		proc, err := process.NewProcess(conn.Pid)
		if err != nil {
			return fmt.Errorf("failed to open process %d: %w", conn.Pid, err)
		}
		if err := proc.SendSignalWithContext(ctx, syscall.SIGHUP); err != nil {
			return fmt.Errorf("failed to send SIGHUP to process %d: %w", conn.Pid, err)
		}
		r.log().Debug(ctx, "SIGHUP sent", "pid", conn.Pid, "port", r.SignalPort)
		signaled++
	}

	if signaled == 0 {
		return fmt.Errorf("no process listening on TCP port %d", r.SignalPort)
	}
	return nil
}
