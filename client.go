// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/openconfig/gnmic/pkg/api"
	target "github.com/openconfig/gnmic/pkg/api/target"
)

// Default client configuration values
const (
	DefaultConnectTimeout   = 30 * time.Second
	DefaultOperationTimeout = 15 * time.Second
)

// Client is a minimal gNMI client for talking to a running agent, used by the
// ctl subcommands and by integration tests.
//
// The client creates a gnmic target configuration but does NOT establish a
// physical connection immediately; the connection is established on the first
// RPC call (lazy connection).
//
// Example:
//
//	client, err := agent.NewClient("localhost:9339",
//	    agent.ClientTLSCA("ca.crt"),
//	    agent.ClientTLSCert("client.crt"),
//	    agent.ClientTLSKey("client.key"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.FetchConfig(ctx)
//	fmt.Print(res.Content)
type Client struct {
	// Target is the agent address ("host:port")
	Target string

	target    *target.Target
	connected bool
	mu        sync.Mutex

	tlsCert    string
	tlsKey     string
	tlsCA      string
	plaintext  bool
	skipVerify bool

	connectTimeout   time.Duration
	operationTimeout time.Duration

	logger Logger
}

// NewClient creates a client for the agent at the given address
func NewClient(targetAddr string, opts ...func(*Client)) (*Client, error) {
	if strings.TrimSpace(targetAddr) == "" {
		return nil, fmt.Errorf("target address cannot be empty")
	}

	client := &Client{
		Target:           targetAddr,
		connectTimeout:   DefaultConnectTimeout,
		operationTimeout: DefaultOperationTimeout,
		logger:           &NoOpLogger{},
	}

	for _, opt := range opts {
		opt(client)
	}

	targetOpts := []api.TargetOption{
		api.Name(client.Target),
		api.Address(client.Target),
		api.Timeout(client.connectTimeout),
		api.Insecure(client.plaintext),
		api.SkipVerify(client.skipVerify),
	}
	if client.tlsCert != "" {
		targetOpts = append(targetOpts, api.TLSCert(client.tlsCert))
	}
	if client.tlsKey != "" {
		targetOpts = append(targetOpts, api.TLSKey(client.tlsKey))
	}
	if client.tlsCA != "" {
		targetOpts = append(targetOpts, api.TLSCA(client.tlsCA))
	}

	t, err := api.NewTarget(targetOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gnmi target: %w", err)
	}
	client.target = t

	return client, nil
}

// ClientTLSCert sets the TLS client certificate file path
func ClientTLSCert(path string) func(*Client) {
	return func(c *Client) {
		c.tlsCert = path
	}
}

// ClientTLSKey sets the TLS client private key file path
func ClientTLSKey(path string) func(*Client) {
	return func(c *Client) {
		c.tlsKey = path
	}
}

// ClientTLSCA sets the CA file used to verify the agent's certificate
func ClientTLSCA(path string) func(*Client) {
	return func(c *Client) {
		c.tlsCA = path
	}
}

// Plaintext disables TLS entirely (testing only)
func Plaintext() func(*Client) {
	return func(c *Client) {
		c.plaintext = true
	}
}

// SkipVerify disables verification of the agent's certificate
//
// WARNING: this makes the connection vulnerable to man-in-the-middle attacks;
// use only in testing environments.
func SkipVerify() func(*Client) {
	return func(c *Client) {
		c.skipVerify = true
	}
}

// ConnectTimeout sets the connection timeout (default: 30s)
func ConnectTimeout(timeout time.Duration) func(*Client) {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

// OperationTimeout sets the per-RPC timeout (default: 15s)
func OperationTimeout(timeout time.Duration) func(*Client) {
	return func(c *Client) {
		c.operationTimeout = timeout
	}
}

// ClientLogger configures a custom logger for the client
func ClientLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// ensureConnected establishes the connection if not already connected
func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.target == nil {
		return fmt.Errorf("client is closed")
	}
	if c.connected {
		return nil
	}

	c.logger.Debug(ctx, "establishing gNMI connection", "target", c.Target)
	if err := c.target.CreateGNMIClient(ctx); err != nil {
		return fmt.Errorf("failed to establish connection: %w", err)
	}
	c.connected = true

	return nil
}

// Close closes the connection and releases the target (terminal operation)
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.target == nil {
		return nil
	}
	t := c.target
	c.target = nil
	c.connected = false
	return t.Close()
}

// Capabilities retrieves the agent's capability descriptor
func (c *Client) Capabilities(ctx context.Context) (CapabilitiesRes, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return CapabilitiesRes{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	resp, err := c.target.Capabilities(ctx)
	if err != nil {
		return CapabilitiesRes{}, fmt.Errorf("capabilities request failed: %w", err)
	}

	encodings := make([]string, 0, len(resp.SupportedEncodings))
	for _, enc := range resp.SupportedEncodings {
		encodings = append(encodings, enc.String())
	}

	return CapabilitiesRes{
		Version:   resp.GNMIVersion,
		Encodings: encodings,
		Models:    resp.SupportedModels,
		OK:        true,
	}, nil
}

// FetchConfig retrieves the whole configuration document from the agent
func (c *Client) FetchConfig(ctx context.Context) (ConfigRes, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return ConfigRes{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	getReq, err := api.NewGetRequest(api.Path("/"), api.Encoding("ascii"))
	if err != nil {
		return ConfigRes{}, fmt.Errorf("failed to create get request: %w", err)
	}

	resp, err := c.target.Get(ctx, getReq)
	if err != nil {
		return ConfigRes{}, fmt.Errorf("get request failed: %w", err)
	}

	res := ConfigRes{Notifications: resp.GetNotification(), OK: true}
	for _, notification := range resp.GetNotification() {
		res.Timestamp = notification.GetTimestamp()
		for _, update := range notification.GetUpdate() {
			if v, ok := update.GetVal().GetValue().(*gnmipb.TypedValue_StringVal); ok {
				res.Content = v.StringVal
				return res, nil
			}
		}
	}

	return res, fmt.Errorf("agent response contained no string-typed configuration value")
}

// PushConfig replaces the whole configuration document on the agent.
//
// A nil error means the document is committed on the agent AND the managed
// daemon confirmed the reload; the agent reports "committed but not
// confirmed" as a gRPC error with the Internal or Unavailable code.
func (c *Client) PushConfig(ctx context.Context, content string) (SetRes, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return SetRes{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	setReq := &gnmipb.SetRequest{
		Replace: []*gnmipb.Update{{
			Path: &gnmipb.Path{},
			Val: &gnmipb.TypedValue{
				Value: &gnmipb.TypedValue_StringVal{StringVal: content},
			},
		}},
	}

	resp, err := c.target.Set(ctx, setReq)
	if err != nil {
		return SetRes{}, fmt.Errorf("set request failed: %w", err)
	}

	return SetRes{
		Response:  resp,
		Timestamp: resp.GetTimestamp(),
		OK:        true,
	}, nil
}
