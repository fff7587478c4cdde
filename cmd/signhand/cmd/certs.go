package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/signhand/certvault"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Manage signing certificates",
}

// passwordFrom reads a certificate password from the named environment
// variable.
func passwordFrom(env string) (string, error) {
	if env == "" {
		return "", errors.New("--password-env is required")
	}
	pw := os.Getenv(env)
	if pw == "" {
		return "", fmt.Errorf("environment variable %s is empty", env)
	}
	return pw, nil
}

// withServices opens storage from the config file and runs fn.
func withServices(ctx context.Context, fn func(*services) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	svc, err := buildServices(cfg, repo, logger)
	if err != nil {
		return err
	}
	return fn(svc)
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed signing certificate",
	Long: `Generate a self-signed ECDSA signing certificate. With --out the PKCS#12
container is written to a file; with --owner it is stored encrypted for that user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		out, _ := f.GetString("out")
		owner, _ := f.GetString("owner")
		if (out == "") == (owner == "") {
			return errors.New("exactly one of --out or --owner is required")
		}
		env, _ := f.GetString("password-env")
		password, err := passwordFrom(env)
		if err != nil {
			return err
		}
		req := certvault.GenerateRequest{OwnerID: owner, Password: password}
		req.CommonName, _ = f.GetString("common-name")
		req.Organization, _ = f.GetString("organization")
		req.Email, _ = f.GetString("email")
		req.Label, _ = f.GetString("label")
		req.ValidityDays, _ = f.GetInt("days")

		if out != "" {
			container, err := certvault.New(nil).BuildContainer(req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, container, 0o600); err != nil {
				return fmt.Errorf("writing container: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		}
		return withServices(cmd.Context(), func(svc *services) error {
			rec, err := svc.vault.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored certificate %s for %s\n", rec.ID, rec.OwnerID)
			return nil
		})
	},
}

var certsInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the metadata of a PKCS#12 container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, _ := cmd.Flags().GetString("password-env")
		password, err := passwordFrom(env)
		if err != nil {
			return err
		}
		container, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading container: %w", err)
		}
		meta, err := certvault.Inspect(container, password, "")
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	},
}

var certsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored certificates of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			return errors.New("--owner is required")
		}
		return withServices(cmd.Context(), func(svc *services) error {
			recs, err := svc.vault.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			writeCertTable(cmd.OutOrStdout(), recs)
			return nil
		})
	},
}

func writeCertTable(w io.Writer, recs []*certvault.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMON NAME\tORGANIZATION\tEXPIRES\tSYSTEM")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
			r.ID, r.Metadata.CommonName, r.Metadata.Organization,
			r.Metadata.NotAfter.Format(time.DateOnly), r.IsSystem())
	}
	tw.Flush()
}

var certsRepairCmd = &cobra.Command{
	Use:   "repair <certificate-id> <file>",
	Short: "Replace a broken certificate record with a system container",
	Long: `Replace a stored certificate that can no longer be decrypted with the given
PKCS#12 container, kept unencrypted as a system record.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading container: %w", err)
		}
		return withServices(cmd.Context(), func(svc *services) error {
			rec, err := svc.vault.Downgrade(cmd.Context(), args[0], container)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s is now a system record\n", rec.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsGenerateCmd, certsInspectCmd, certsListCmd, certsRepairCmd)

	g := certsGenerateCmd.Flags()
	g.String("out", "", "Write the PKCS#12 container to this file")
	g.String("owner", "", "Store the certificate for this user id")
	g.String("common-name", "", "Subject common name")
	g.String("organization", "", "Subject organization")
	g.String("email", "", "Subject email address")
	g.String("label", "", "Label of the stored certificate")
	g.Int("days", certvault.DefaultValidityDays, "Validity in days")
	g.String("password-env", "SIGNHAND_CERT_PASSWORD", "Environment variable holding the container password")

	certsInspectCmd.Flags().String("password-env", "SIGNHAND_CERT_PASSWORD", "Environment variable holding the container password")
	certsListCmd.Flags().String("owner", "", "User id")
}
