// Package client drives the product-side license manager from the shell,
// which is handy for support and for smoke-testing a deployment.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/flaco-inc/flaco/pkg/licensekey"
	"github.com/flaco-inc/flaco/pkg/receipt"
	"github.com/flaco-inc/flaco/sdk/licenseclient"
)

// Environment fallbacks for the trust flags, named after the server's keys.
const (
	envSigningSecret         = "FLACO_LICENSE_SIGNING_SECRET"
	envPreviousSigningSecret = "FLACO_LICENSE_PREVIOUS_SIGNING_SECRET"
	envReceiptPublicKey      = "FLACO_LICENSE_RECEIPT_PUBLIC_KEY"
)

type options struct {
	serverURL   string
	statePath   string
	appVersion  string
	gracePeriod time.Duration
	timeout     time.Duration

	secret         string
	previousSecret string
	receiptKey     string
}

func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Activate and check a license on this machine",
		Long:  `Run the client license manager: activate a key, verify it against the server, inspect the cached status or deactivate.`,
	}

	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:8080", "License server base URL")
	cmd.PersistentFlags().StringVar(&opts.statePath, "state", "", "State file (default: <user config dir>/flaco/license.json)")
	cmd.PersistentFlags().StringVar(&opts.appVersion, "app-version", "cli", "Application version reported to the server")
	cmd.PersistentFlags().DurationVar(&opts.gracePeriod, "grace", licenseclient.DefaultGracePeriod, "How long a cached verification is trusted offline")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", licenseclient.DefaultTimeout, "Request timeout")
	cmd.PersistentFlags().StringVar(&opts.secret, "secret", "", "Signing secret for the offline key check (env "+envSigningSecret+")")
	cmd.PersistentFlags().StringVar(&opts.previousSecret, "previous-secret", "", "Previous signing secret (env "+envPreviousSigningSecret+")")
	cmd.PersistentFlags().StringVar(&opts.receiptKey, "receipt-key", "", "Base64 receipt public key; requires signed receipts offline (env "+envReceiptPublicKey+")")

	cmd.AddCommand(
		newActivateCommand(opts),
		newVerifyCommand(opts),
		newStatusCommand(opts),
		newDeactivateCommand(opts),
	)

	return cmd
}

func newActivateCommand(opts *options) *cobra.Command {
	var email, key string

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate a license on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager()
			if err != nil {
				return err
			}
			st, err := m.Activate(cmd.Context(), email, key)
			if errors.Is(err, licenseclient.ErrInvalidLicense) {
				return fmt.Errorf("activation failed: %w", err)
			}
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "License email (required)")
	cmd.Flags().StringVar(&key, "key", "", "License key (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func newVerifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-check the activated license with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			st, err := m.Verify(ctx)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cached entitlement without contacting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager()
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), m.Status())
		},
	}
}

func newDeactivateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Forget the license on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager()
			if err != nil {
				return err
			}
			if err := m.Deactivate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "license removed from this device")
			return nil
		},
	}
}

func (o *options) manager() (*licenseclient.Manager, error) {
	statePath := o.statePath
	if statePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("cannot locate user config dir, pass --state: %w", err)
		}
		statePath = filepath.Join(dir, "flaco", "license.json")
	}

	managerOpts := []licenseclient.Option{licenseclient.WithTimeout(o.timeout)}

	secret := flagOrEnv(o.secret, envSigningSecret)
	if secret != "" {
		kr, err := licensekey.NewKeyring([]string{secret, flagOrEnv(o.previousSecret, envPreviousSigningSecret)})
		if err != nil {
			return nil, fmt.Errorf("signing secret: %w", err)
		}
		managerOpts = append(managerOpts, licenseclient.WithKeyring(kr))
	}

	if encoded := flagOrEnv(o.receiptKey, envReceiptPublicKey); encoded != "" {
		pub, err := receipt.ParsePublicKey(encoded)
		if err != nil {
			return nil, err
		}
		managerOpts = append(managerOpts, licenseclient.WithReceiptKey(pub))
	}

	return licenseclient.New(licenseclient.Config{
		ServerURL:   o.serverURL,
		StatePath:   statePath,
		AppVersion:  o.appVersion,
		GracePeriod: o.gracePeriod,
	}, managerOpts...)
}

func flagOrEnv(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}

func printStatus(out io.Writer, st licenseclient.Status) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
