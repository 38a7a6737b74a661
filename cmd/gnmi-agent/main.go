// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Command gnmi-agent serves a gNMI interface for updating a network-control
// daemon's configuration file.
//
// The agent must be invoked with a TLS certificate and private key and the
// path to the daemon's configuration file (which must be accessible to both
// the daemon and the agent):
//
//	gnmi-agent --cert agent.crt --key agent.key --configfile /etc/faucet.yaml
//
// By default a HUP signal is sent to the process listening on the daemon's
// Prometheus port to trigger a config reload. If the daemon reloads on file
// change by itself (e.g. FAUCET with FAUCET_CONFIG_STAT_RELOAD=1), run the
// agent with --nohup; the reload is still confirmed through the daemon's
// Prometheus endpoint. This allows daemon and agent to run in separate
// containers or pid namespaces, as long as they share the config directory.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	agent "github.com/netascode/go-gnmi-agent"
)

var (
	certFile    string
	keyFile     string
	caFile      string
	configFile  string
	gnmiAddr    string
	gnmiPort    int
	promAddr    string
	promPort    int
	dpWait      float64
	timeout     time.Duration
	noHup       bool
	backupFile  string
	metricsAddr string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:     "gnmi-agent",
	Short:   "gNMI configuration agent for file-based network-control daemons",
	Long:    "gnmi-agent serves gNMI Capabilities/Get/Set over a single-node data model:\nthe root path addresses the daemon's whole configuration file.",
	Version: agent.Version,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return runAgent(cmd.Context())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&certFile, "cert", "", "TLS certificate file")
	flags.StringVar(&keyFile, "key", "", "TLS private key file")
	flags.StringVar(&caFile, "ca", "", "CA file for client certificate verification (enables mutual TLS)")
	flags.StringVar(&configFile, "configfile", "", "daemon configuration file (required)")
	flags.StringVar(&gnmiAddr, "gnmiaddr", "[::]", "gNMI address to listen on")
	flags.IntVar(&gnmiPort, "gnmiport", 9339, "gNMI port")
	flags.StringVar(&promAddr, "promaddr", "http://localhost", "daemon Prometheus address")
	flags.IntVar(&promPort, "promport", 9302, "daemon Prometheus port")
	flags.Float64Var(&dpWait, "dpwait", 0.0, "fraction of datapaths that must apply the config before a Set succeeds")
	flags.DurationVar(&timeout, "timeout", 120*time.Second, "max time to wait for config reload confirmation")
	flags.BoolVar(&noHup, "nohup", false, "do not send HUP; rely on the daemon's own config file watching")
	flags.StringVar(&backupFile, "backup", "", "preserve the previous config at this path before each replace")
	flags.StringVar(&metricsAddr, "metricsaddr", "", "serve agent metrics on this address (e.g. :9340, empty = disabled)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cobra.CheckErr(rootCmd.MarkFlagRequired("configfile"))

	rootCmd.AddCommand(ctlCmd)
}

func runAgent(ctx context.Context) error {
	zl := newZerolog(logLevel)
	logger := &zerologAdapter{logger: zl}

	statusURL := fmt.Sprintf("%s:%d", promAddr, promPort)
	status, err := agent.NewStatusClient(statusURL, agent.StatusLogger(logger))
	if err != nil {
		return err
	}

	absConfig, err := filepath.Abs(configFile)
	if err != nil {
		return err
	}

	reloaderOpts := []func(*agent.ControllerReloader){
		agent.SignalPort(promPort),
		agent.ReloadTimeout(timeout),
		agent.MinApplied(dpWait),
		agent.ConfigPath(absConfig),
		agent.ReloaderLogger(logger),
	}
	if noHup {
		reloaderOpts = append(reloaderOpts, agent.NoSignal())
	}
	reloader := agent.NewControllerReloader(status, reloaderOpts...)

	serverOpts := []func(*agent.Server){
		agent.CertFile(certFile),
		agent.KeyFile(keyFile),
		agent.ClientCAFile(caFile),
		agent.WithReloader(reloader),
		agent.WithLogger(logger),
	}
	if backupFile != "" {
		serverOpts = append(serverOpts, agent.BackupFile(backupFile))
	}

	srv, err := agent.NewServer(absConfig, serverOpts...)
	if err != nil {
		return err
	}

	watcher, err := agent.WatchStore(srv.Store(), logger, srv.Metrics())
	if err != nil {
		zl.Warn().Err(err).Msg("config file watcher disabled")
	} else {
		defer watcher.Close() //nolint:errcheck
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.Metrics().Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				zl.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
		zl.Info().Str("address", metricsAddr).Msg("metrics endpoint started")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", gnmiAddr, gnmiPort)
	zl.Info().Str("address", addr).Str("config", srv.Store().Path()).Msg("starting gNMI configuration agent")
	return srv.Serve(ctx, addr)
}

func newZerolog(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
