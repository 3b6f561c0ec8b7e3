// Package license holds the operator commands for issuing and inspecting
// licenses without going through the billing provider.
package license

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/flaco-inc/flaco/internal/application/license/usecases"
	domain "github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	"github.com/flaco-inc/flaco/internal/infrastructure/email"
	"github.com/flaco-inc/flaco/internal/interfaces/cli/clienv"
	"github.com/flaco-inc/flaco/pkg/receipt"
)

var flags clienv.Flags

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Operator license tools",
		Long:  `Issue licenses by hand, inspect them, manage device activations and prepare the admin token.`,
	}

	cmd.PersistentFlags().StringVarP(&flags.Env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	cmd.AddCommand(
		newIssueCommand(),
		newShowCommand(),
		newActivationsCommand(),
		newHashTokenCommand(),
		newReceiptKeygenCommand(),
	)

	return cmd
}

func newIssueCommand() *cobra.Command {
	var (
		cmdArgs   usecases.IssueLicenseCommand
		expiresAt string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a license outside the checkout flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if expiresAt != "" {
				t, err := parseExpiry(expiresAt)
				if err != nil {
					return err
				}
				cmdArgs.ExpiresAt = &t
			}

			uc, err := openIssuer()
			if err != nil {
				return err
			}
			defer database.Close()

			result, err := uc.Execute(cmd.Context(), cmdArgs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Created {
				fmt.Fprintln(out, "A license already exists for this subscription:")
			}
			printLicense(out, result.License)
			if cmdArgs.SendEmail {
				if result.EmailSent {
					fmt.Fprintln(out, "Email:\tsent")
				} else {
					fmt.Fprintf(out, "Email:\tnot sent (%s)\n", result.EmailError)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cmdArgs.Email, "email", "", "Customer email (required)")
	cmd.Flags().StringVar(&cmdArgs.Tier, "tier", "pro", "Tier: pro or enterprise")
	cmd.Flags().StringVar(&cmdArgs.BillingPeriod, "billing", "annual", "Billing period: monthly or annual")
	cmd.Flags().StringVar(&expiresAt, "expires", "", "Explicit expiry (RFC 3339 or YYYY-MM-DD), overrides --billing")
	cmd.Flags().StringVar(&cmdArgs.SubscriptionID, "subscription-id", "", "Subscription id (default: manual_<uuid>)")
	cmd.Flags().StringVar(&cmdArgs.CustomerID, "customer-id", "", "Billing provider customer id")
	cmd.Flags().BoolVar(&cmdArgs.SendEmail, "send-email", false, "Email the key to the customer")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <subscription_id>",
		Short: "Show a license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := clienv.Load(&flags)
			if err != nil {
				return err
			}
			store, _, err := clienv.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			lic, err := usecases.NewGetLicenseUseCase(store).Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLicense(cmd.OutOrStdout(), lic)
			return nil
		},
	}
}

func newActivationsCommand() *cobra.Command {
	var (
		email string
		key   string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "activations",
		Short: "List or reset the devices recorded for a license",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := clienv.Load(&flags)
			if err != nil {
				return err
			}
			store, keyring, err := clienv.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			uc := usecases.NewManageActivationsUseCase(store, keyring, log)
			out := cmd.OutOrStdout()

			if reset {
				removed, err := uc.Reset(cmd.Context(), email, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d activation(s)\n", removed)
				return nil
			}

			activations, err := uc.List(cmd.Context(), email, key)
			if err != nil {
				return err
			}
			printActivations(out, activations)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "License email (required)")
	cmd.Flags().StringVar(&key, "key", "", "License key (required)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Remove every activation instead of listing")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func newHashTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash for admin.token_hash",
		Long:  `Hash the given admin token, or generate a random one, for the admin.token_hash setting.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				buf := make([]byte, 24)
				if _, err := rand.Read(buf); err != nil {
					return fmt.Errorf("failed to generate token: %w", err)
				}
				token = hex.EncodeToString(buf)
				fmt.Fprintf(out, "token: %s\n", token)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash token: %w", err)
			}
			fmt.Fprintf(out, "hash:  %s\n", hash)
			return nil
		},
	}
}

func newReceiptKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt-keygen",
		Short: "Generate the key pair for signed verification receipts",
		Long:  `Generate an Ed25519 key pair. The private key goes to license.receipt_private_key on the server; clients get the public key.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			public, private, err := receipt.GenerateKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private: %s\n", private)
			fmt.Fprintf(out, "public:  %s\n", public)
			return nil
		},
	}
}

func openIssuer() (*usecases.IssueLicenseUseCase, error) {
	cfg, log, err := clienv.Load(&flags)
	if err != nil {
		return nil, err
	}
	store, keyring, err := clienv.OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	var notifier domain.Notifier = email.DisabledNotifier{}
	if cfg.Email.Enabled {
		notifier = email.NewLicenseMailer(email.SMTPConfigFrom(&cfg.Email))
	}
	return usecases.NewIssueLicenseUseCase(store, keyring, notifier, log), nil
}

func parseExpiry(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --expires %q: use RFC 3339 or YYYY-MM-DD", value)
	}
	return t.UTC(), nil
}

func printLicense(out io.Writer, lic *domain.License) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Subscription:\t%s\n", lic.SubscriptionID)
	fmt.Fprintf(w, "Email:\t%s\n", lic.Email)
	fmt.Fprintf(w, "Tier:\t%s\n", lic.Tier)
	fmt.Fprintf(w, "Billing:\t%s\n", lic.BillingPeriod)
	fmt.Fprintf(w, "License key:\t%s\n", lic.LicenseKey)
	fmt.Fprintf(w, "Expires:\t%s\n", lic.ExpiresAt.UTC().Format(time.RFC3339))
	if lic.EmailSentAt != nil {
		fmt.Fprintf(w, "Email sent:\t%s\n", lic.EmailSentAt.UTC().Format(time.RFC3339))
	}
	w.Flush()
}

func printActivations(out io.Writer, activations []*domain.DeviceActivation) {
	if len(activations) == 0 {
		fmt.Fprintln(out, "No activations recorded")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tNAME\tPLATFORM\tVERSION\tLAST SEEN")
	for _, a := range activations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.DeviceID, a.DeviceName, a.Platform, a.AppVersion, a.LastSeenAt.UTC().Format(time.RFC3339))
	}
	w.Flush()
}
