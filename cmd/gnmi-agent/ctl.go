// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	agent "github.com/netascode/go-gnmi-agent"
)

var (
	ctlTarget     string
	ctlCA         string
	ctlCert       string
	ctlKey        string
	ctlSkipVerify bool
	ctlPlaintext  bool
	ctlTimeout    time.Duration
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Talk to a running agent",
}

func init() {
	flags := ctlCmd.PersistentFlags()
	flags.StringVar(&ctlTarget, "target", "localhost:9339", "agent address")
	flags.StringVar(&ctlCA, "ca", "", "CA file to verify the agent certificate")
	flags.StringVar(&ctlCert, "cert", "", "TLS client certificate file")
	flags.StringVar(&ctlKey, "key", "", "TLS client private key file")
	flags.BoolVar(&ctlSkipVerify, "skip-verify", false, "skip agent certificate verification (testing only)")
	flags.BoolVar(&ctlPlaintext, "plaintext", false, "disable TLS (testing only)")
	flags.DurationVar(&ctlTimeout, "timeout", 2*time.Minute, "RPC timeout")

	ctlCmd.AddCommand(ctlCapabilitiesCmd, ctlGetCmd, ctlSetCmd)
}

func ctlClient() (*agent.Client, error) {
	opts := []func(*agent.Client){
		agent.OperationTimeout(ctlTimeout),
	}
	if ctlCA != "" {
		opts = append(opts, agent.ClientTLSCA(ctlCA))
	}
	if ctlCert != "" {
		opts = append(opts, agent.ClientTLSCert(ctlCert))
	}
	if ctlKey != "" {
		opts = append(opts, agent.ClientTLSKey(ctlKey))
	}
	if ctlSkipVerify {
		opts = append(opts, agent.SkipVerify())
	}
	if ctlPlaintext {
		opts = append(opts, agent.Plaintext())
	}
	return agent.NewClient(ctlTarget, opts...)
}

var ctlCapabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Print the agent's capability descriptor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		client, err := ctlClient()
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck

		res, err := client.Capabilities(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("gNMI version: %s\n", res.Version)
		for _, model := range res.Models {
			fmt.Printf("model: %s %s %s\n", model.GetName(), model.GetOrganization(), model.GetVersion())
		}
		for _, enc := range res.Encodings {
			fmt.Printf("encoding: %s\n", enc)
		}
		return nil
	},
}

var ctlGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current configuration document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		client, err := ctlClient()
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck

		res, err := client.FetchConfig(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(res.Content)
		return nil
	},
}

var ctlSetCmd = &cobra.Command{
	Use:   "set [file]",
	Short: "Replace the configuration document from a file (or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		var content []byte
		var err error
		if len(args) == 1 && args[0] != "-" {
			content, err = os.ReadFile(args[0])
		} else {
			content, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}

		client, err := ctlClient()
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck

		res, err := client.PushConfig(cmd.Context(), string(content))
		if err != nil {
			return err
		}
		op := "UNKNOWN"
		if results := res.Response.GetResponse(); len(results) > 0 {
			op = results[0].GetOp().String()
		}
		fmt.Printf("replace confirmed, op=%s\n", op)
		return nil
	},
}
