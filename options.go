// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

// Server configuration options using the functional options pattern

// CertFile sets the TLS server certificate file path
//
// Certificate and key must be configured together. Without them the server
// runs in plaintext, which is only acceptable for testing.
func CertFile(path string) func(*Server) {
	return func(s *Server) {
		s.certFile = path
	}
}

// KeyFile sets the TLS server private key file path
func KeyFile(path string) func(*Server) {
	return func(s *Server) {
		s.keyFile = path
	}
}

// ClientCAFile sets a CA bundle for mutual TLS; when configured, clients must
// present a certificate signed by this CA
func ClientCAFile(path string) func(*Server) {
	return func(s *Server) {
		s.clientCAFile = path
	}
}

// BackupFile enables a best-effort backup of the previous configuration at
// the given side location before each replace
//
// Failure to write the backup is logged but never blocks the replace.
func BackupFile(path string) func(*Server) {
	return func(s *Server) {
		s.backupPath = path
	}
}

// WithReloader configures how the managed daemon is notified after a
// successful replace (default: NopReloader, every reload accepted)
//
// Example:
//
//	status, _ := agent.NewStatusClient("http://localhost:9302")
//	srv, _ := agent.NewServer("/etc/faucet.yaml",
//	    agent.WithReloader(agent.NewControllerReloader(status,
//	        agent.SignalPort(9302))))
func WithReloader(reloader Reloader) func(*Server) {
	return func(s *Server) {
		if reloader != nil {
			s.reloader = reloader
		}
	}
}

// WithLogger configures a custom logger for the server
//
// By default the server uses NoOpLogger which discards all log messages.
func WithLogger(logger Logger) func(*Server) {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics configures a custom metrics set, e.g. to share a registry
// across components (default: a fresh private registry)
func WithMetrics(metrics *Metrics) func(*Server) {
	return func(s *Server) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// ModelData overrides the model triplet announced by Capabilities
// (default: FAUCET / faucet.nz / 1.0)
func ModelData(name, organization, version string) func(*Server) {
	return func(s *Server) {
		s.modelName = name
		s.modelOrganization = organization
		s.modelVersion = version
	}
}

// AgentVersion overrides the gNMI agent version announced by Capabilities
func AgentVersion(version string) func(*Server) {
	return func(s *Server) {
		s.version = version
	}
}

// SyntaxCheck enables or disables the YAML well-formedness check on Set
// payloads (default: enabled)
//
// This is a syntactic check only; the agent never validates the document
// against the daemon's schema. Disable it when the managed daemon consumes a
// non-YAML configuration format.
func SyntaxCheck(enabled bool) func(*Server) {
	return func(s *Server) {
		s.syntaxCheck = enabled
	}
}
