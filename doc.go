// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package agent implements a gNMI configuration agent for network-control
// daemons that consume a single text/YAML configuration file, such as the
// FAUCET OpenFlow controller.
//
// The agent exposes a deliberately narrow slice of the gNMI protocol: the
// Capabilities, Get and Set RPCs over a data model with exactly one
// addressable node, the root path "/", denoting the whole configuration
// document. Get returns the file's content as a string-typed value; Set
// supports a single whole-document replace, committed with an atomic
// write-temp/sync/rename sequence so no reader or crash ever observes a
// partial document.
//
// # Quick Start
//
// Create and serve an agent:
//
//	status, _ := agent.NewStatusClient("http://localhost:9302")
//	reloader := agent.NewControllerReloader(status,
//	    agent.SignalPort(9302),
//	    agent.ConfigPath("/etc/faucet.yaml"))
//
//	srv, err := agent.NewServer("/etc/faucet.yaml",
//	    agent.CertFile("agent.crt"),
//	    agent.KeyFile("agent.key"),
//	    agent.WithReloader(reloader))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(srv.Serve(ctx, "[::]:9339"))
//
// Talk to a running agent:
//
//	client, _ := agent.NewClient("localhost:9339", agent.ClientTLSCA("ca.crt"))
//	defer client.Close()
//
//	res, _ := client.FetchConfig(ctx)
//	fmt.Print(res.Content)
//
// # Durable Write, Best-Effort Reload
//
// A Set performs two independently failable steps: the durable replace of the
// file, and the notification of the managed daemon. A reload that is rejected
// or not confirmed in time is reported as an RPC error (Internal or
// Unavailable) even though the new document is already committed on disk -
// callers can distinguish "config not stored" from "config stored but daemon
// not yet reloaded" by the status code, and retry the reload out-of-band.
//
// # Thread Safety
//
// Get RPCs require no locking; the atomic rename guarantees a reader observes
// either the old or the new document. Concurrent Set RPCs are serialized by a
// single writer lock inside the store.
//
// # References
//
//   - gNMI Specification: https://github.com/openconfig/reference/blob/master/rpc/gnmi/gnmi-specification.md
//   - gNMI Protocol: https://github.com/openconfig/gnmi/blob/master/proto/gnmi/gnmi.proto
//   - FAUCET: https://docs.faucet.nz
package agent
