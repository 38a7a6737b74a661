// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

// Default capability descriptor values, matching the FAUCET controller
const (
	// DefaultModelName is the configuration schema name announced by Capabilities
	DefaultModelName = "FAUCET"

	// DefaultModelOrganization is the schema organization announced by Capabilities
	DefaultModelOrganization = "faucet.nz"

	// DefaultModelVersion is the schema version announced by Capabilities
	DefaultModelVersion = "1.0"

	// Version is the semantic version of this agent
	Version = "0.1"
)

// MaxConfigBytes is the maximum accepted configuration document size (10MB)
const MaxConfigBytes = 10 * 1024 * 1024

// Server implements the gNMI Capabilities, Get and Set RPCs over a data model
// with exactly one addressable node: the root path "/", denoting the whole
// managed configuration document.
//
// The service itself is stateless between RPCs; the store's file is the only
// durable state. Each inbound RPC runs on its own goroutine (standard gRPC
// scheduling); the only blocking points are the store's write/sync/rename and
// the reloader's bounded confirmation wait.
//
// Example:
//
//	srv, err := agent.NewServer("/etc/faucet.yaml",
//	    agent.CertFile("agent.crt"),
//	    agent.KeyFile("agent.key"),
//	    agent.WithReloader(reloader),
//	    agent.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.Serve(ctx, "[::]:9339")
type Server struct {
	gnmipb.UnimplementedGNMIServer

	store    *Store
	reloader Reloader
	logger   Logger
	metrics  *Metrics

	// Capability descriptor, immutable for the process lifetime
	modelName         string
	modelOrganization string
	modelVersion      string
	version           string

	// syntaxCheck rejects Set payloads that are not well-formed YAML
	syntaxCheck bool

	// TLS material for Serve
	certFile     string
	keyFile      string
	clientCAFile string

	// backupPath enables the store's best-effort backup when non-empty
	backupPath string
}

// NewServer creates a gNMI agent server managing the configuration file at
// configPath.
//
// By default the server uses a NopReloader (every reload accepted), a
// NoOpLogger, YAML syntax checking, and the FAUCET capability descriptor.
// All process-wide inputs (file path, TLS material, reload channel) are
// passed in here rather than read from ambient state, so the core stays
// testable with injected temporary paths and fake reloaders.
//
// Returns a configured Server or an error if configuration validation fails.
func NewServer(configPath string, opts ...func(*Server)) (*Server, error) {
	server := &Server{
		reloader:          NopReloader{},
		logger:            &NoOpLogger{},
		metrics:           NewMetrics(),
		modelName:         DefaultModelName,
		modelOrganization: DefaultModelOrganization,
		modelVersion:      DefaultModelVersion,
		version:           Version,
		syntaxCheck:       true,
	}

	for _, opt := range opts {
		opt(server)
	}

	storeOpts := []func(*Store){StoreLogger(server.logger)}
	if server.backupPath != "" {
		storeOpts = append(storeOpts, StoreBackup(server.backupPath))
	}
	store, err := NewStore(configPath, storeOpts...)
	if err != nil {
		return nil, err
	}
	server.store = store

	if err := server.validateConfig(); err != nil {
		return nil, err
	}

	server.logger.Info(context.Background(), "gNMI agent created",
		"config", store.Path(),
		"model", server.modelName,
		"version", server.version)

	return server, nil
}

// Store returns the server's configuration store
func (s *Server) Store() *Store {
	return s.store
}

// Metrics returns the server's metrics for exposure on an HTTP endpoint
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// validateConfig validates server configuration before serving
//
// Validates TLS certificate file paths exist (if provided) and that cert and
// key are configured together.
func (s *Server) validateConfig() error {
	if (s.certFile == "") != (s.keyFile == "") {
		return fmt.Errorf("TLS certificate and key must be configured together")
	}
	for _, file := range []string{s.certFile, s.keyFile, s.clientCAFile} {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("TLS file not found: %s", file)
		}
	}
	return nil
}

// Capabilities returns the static capability descriptor: the supported model
// triplet, supported encodings, and the agent's gNMI version. Pure; no path
// is involved and the call always succeeds.
func (s *Server) Capabilities(ctx context.Context, _ *gnmipb.CapabilityRequest) (*gnmipb.CapabilityResponse, error) {
	s.logger.Debug(ctx, "gNMI Capabilities request")

	return &gnmipb.CapabilityResponse{
		SupportedModels: []*gnmipb.ModelData{{
			Name:         s.modelName,
			Organization: s.modelOrganization,
			Version:      s.modelVersion,
		}},
		SupportedEncodings: []gnmipb.Encoding{gnmipb.Encoding_JSON},
		GNMIVersion:        s.version,
	}, nil
}

// Get returns the current committed configuration document as a string-typed
// value at the root path.
//
// Only the root path is addressable; any other path fails with
// InvalidArgument. A Get before any document exists fails with NotFound.
func (s *Server) Get(ctx context.Context, req *gnmipb.GetRequest) (*gnmipb.GetResponse, error) {
	s.logger.Debug(ctx, "gNMI Get request", "paths", len(req.GetPath()))

	if err := resolveRoot(req.GetPrefix(), nil); err != nil {
		s.metrics.GetsTotal.WithLabelValues("invalid_path").Inc()
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	for _, path := range req.GetPath() {
		if err := resolveRoot(nil, path); err != nil {
			s.metrics.GetsTotal.WithLabelValues("invalid_path").Inc()
			s.logger.Debug(ctx, "gNMI Get path rejected", "path", PathString(path))
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	now := time.Now().UnixNano()
	content, err := s.store.Read()
	if err != nil {
		if err == ErrNotFound {
			s.metrics.GetsTotal.WithLabelValues("not_found").Inc()
			return nil, status.Errorf(codes.NotFound, "no configuration document exists at %s", s.store.Path())
		}
		s.metrics.GetsTotal.WithLabelValues("store_error").Inc()
		s.logger.Error(ctx, "configuration read failed", "error", err.Error())
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.metrics.GetsTotal.WithLabelValues("ok").Inc()
	return &gnmipb.GetResponse{
		Notification: []*gnmipb.Notification{{
			Timestamp: now,
			Update: []*gnmipb.Update{{
				Path: &gnmipb.Path{},
				Val: &gnmipb.TypedValue{
					Value: &gnmipb.TypedValue_StringVal{StringVal: string(content)},
				},
			}},
		}},
	}, nil
}

// Set replaces the whole configuration document and notifies the managed
// daemon.
//
// Only a single replace operation at the root path is supported; update,
// delete and extension operations fail with Unimplemented. The payload must
// be a string-typed value (and, unless syntax checking is disabled,
// well-formed YAML).
//
// The durable write and the reload notification are two independently
// failable steps: a store failure returns Internal with nothing committed,
// while a rejected or unconfirmed reload returns Internal or Unavailable with
// the new document already committed on disk. Callers can tell "config not
// stored" from "config stored but daemon not confirmed" by the status code
// and message text.
func (s *Server) Set(ctx context.Context, req *gnmipb.SetRequest) (*gnmipb.SetResponse, error) {
	s.logger.Debug(ctx, "gNMI Set request",
		"replace", len(req.GetReplace()),
		"update", len(req.GetUpdate()),
		"delete", len(req.GetDelete()))

	if len(req.GetDelete()) > 0 {
		return nil, s.setFailed(ctx, "unsupported_op",
			status.Error(codes.Unimplemented, `"delete" operations are not supported: use a single "replace" of the root path`))
	}
	if len(req.GetUpdate()) > 0 {
		return nil, s.setFailed(ctx, "unsupported_op",
			status.Error(codes.Unimplemented, `"update" operations are not supported: use a single "replace" of the root path`))
	}
	if len(req.GetExtension()) > 0 {
		return nil, s.setFailed(ctx, "unsupported_op",
			status.Error(codes.Unimplemented, "extensions are not supported"))
	}
	if len(req.GetReplace()) != 1 {
		return nil, s.setFailed(ctx, "invalid_payload",
			status.Errorf(codes.InvalidArgument, "a single replace operation is required, got %d", len(req.GetReplace())))
	}

	replace := req.GetReplace()[0]
	if err := resolveRoot(req.GetPrefix(), replace.GetPath()); err != nil {
		return nil, s.setFailed(ctx, "invalid_path", status.Error(codes.InvalidArgument, err.Error()))
	}

	content, err := stringPayload(replace.GetVal())
	if err != nil {
		return nil, s.setFailed(ctx, "invalid_payload", status.Error(codes.InvalidArgument, err.Error()))
	}

	if s.syntaxCheck {
		var doc any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, s.setFailed(ctx, "invalid_payload",
				status.Errorf(codes.InvalidArgument, "configuration is not well-formed YAML: %v", err))
		}
	}

	if err := s.store.Replace(ctx, content); err != nil {
		s.logger.Error(ctx, "configuration replace failed", "error", err.Error())
		return nil, s.setFailed(ctx, "store_error", status.Error(codes.Internal, err.Error()))
	}
	s.metrics.LastCommitTimestamp.SetToCurrentTime()
	s.logger.Info(ctx, "configuration document committed",
		"path", s.store.Path(),
		"bytes", len(content))

	result := s.reloader.Notify(ctx, content)
	s.metrics.ReloadSeconds.Observe(result.Elapsed.Seconds())

	switch result.Outcome {
	case Accepted:
		s.metrics.SetsTotal.WithLabelValues("ok").Inc()
		return &gnmipb.SetResponse{
			Timestamp: time.Now().UnixNano(),
			Response: []*gnmipb.UpdateResult{{
				Path: replace.GetPath(),
				Op:   gnmipb.UpdateResult_REPLACE,
			}},
		}, nil
	case Rejected:
		// The write is durable; only the daemon's adoption failed
		return nil, s.setFailed(ctx, "reload_rejected",
			status.Errorf(codes.Internal,
				"configuration written to %s but daemon rejected reload: %s", s.store.Path(), result.Reason))
	default:
		return nil, s.setFailed(ctx, "reload_timeout",
			status.Errorf(codes.Unavailable,
				"configuration written to %s but daemon did not confirm reload within %s", s.store.Path(), result.Elapsed))
	}
}

// Subscribe is not supported; the agent serves whole-document get/replace only
func (s *Server) Subscribe(_ gnmipb.GNMI_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "Subscribe is not supported by this agent")
}

// setFailed counts a failed Set by reason and logs it, passing the status
// error through for returning to the caller.
func (s *Server) setFailed(ctx context.Context, reason string, err error) error {
	s.metrics.SetsTotal.WithLabelValues(reason).Inc()
	s.logger.Warn(ctx, "gNMI Set rejected", "reason", reason, "error", err.Error())
	return err
}

// stringPayload extracts the configuration document from a gNMI typed value.
// Both string and ASCII typed values are accepted; anything else is a payload
// error.
func stringPayload(val *gnmipb.TypedValue) ([]byte, error) {
	if val == nil {
		return nil, fmt.Errorf("string value (configuration document) required")
	}

	var content string
	switch v := val.GetValue().(type) {
	case *gnmipb.TypedValue_StringVal:
		content = v.StringVal
	case *gnmipb.TypedValue_AsciiVal:
		content = v.AsciiVal
	default:
		return nil, fmt.Errorf("string value (configuration document) required, got %T", val.GetValue())
	}

	if len(content) > MaxConfigBytes {
		return nil, fmt.Errorf("configuration document exceeds maximum of %d bytes (got %d)", MaxConfigBytes, len(content))
	}
	return []byte(content), nil
}

// Serve listens on addr and serves gNMI RPCs until ctx is canceled.
//
// With CertFile/KeyFile configured the listener terminates TLS; with
// ClientCAFile additionally configured, clients must present a certificate
// signed by that CA. Without TLS material the server runs in plaintext and
// logs a warning (testing only).
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves gNMI RPCs on an existing listener until ctx is
// canceled. In-flight RPCs are allowed to complete (graceful stop), matching
// the store's no-partial-write guarantee.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	creds, err := s.transportCredentials(ctx)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.MaxRecvMsgSize(MaxConfigBytes+1024*1024),
	)
	gnmipb.RegisterGNMIServer(grpcServer, s)

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	s.logger.Info(ctx, "gNMI agent listening",
		"address", lis.Addr().String(),
		"tls", s.certFile != "")

	if err := grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// transportCredentials builds the gRPC transport credentials from the
// configured TLS material.
func (s *Server) transportCredentials(ctx context.Context) (credentials.TransportCredentials, error) {
	if s.certFile == "" {
		s.logger.Warn(ctx, "TLS disabled - connection is not encrypted",
			"security_risk", "configuration transmitted in clear text",
			"recommendation", "configure CertFile and KeyFile for production use")
		return insecure.NewCredentials(), nil
	}

	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if s.clientCAFile != "" {
		pem, err := os.ReadFile(s.clientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in client CA file %s", s.clientCAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return credentials.NewTLS(cfg), nil
}
