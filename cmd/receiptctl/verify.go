package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tise-genene/verifyreceipt/internal/app"
	"github.com/tise-genene/verifyreceipt/internal/platform/logger"
	"github.com/tise-genene/verifyreceipt/internal/verification/handler"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/pkg/requestcontext"
)

func verifyCmd() *cobra.Command {
	var (
		provider  string
		reference string
		suffix    string
		phone     string
		image     string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run one verification and print the canonical result as JSON",
		Long: `Run one orchestrated verification with the same configuration as the server.

Examples:
  receiptctl verify --provider cbe --reference FT26015ABC12 --suffix 12345678
  receiptctl verify --provider telebirr --reference CE2513001XYT
  receiptctl verify --image receipt.jpg --provider cbe --suffix 12345678`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Logs go to stderr so stdout stays parseable.
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, "text")
			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}

			ctx := requestcontext.WithClientMetadata(cmd.Context(), "cli", "receiptctl/"+Version)

			var result *models.Verification
			if image != "" {
				data, err := os.ReadFile(image)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				req, err := models.NewImageRequest(data, image, provider, suffix)
				if err != nil {
					return err
				}
				result, err = a.Service.VerifyImage(ctx, req)
				if err != nil {
					return err
				}
			} else {
				req, err := models.NewReferenceRequest(provider, reference, suffix, phone)
				if err != nil {
					return err
				}
				result, err = a.Service.VerifyReference(ctx, req)
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), handler.FromResult(result))
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider (telebirr, cbe, dashen, abyssinia, cbebirr)")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "transaction reference")
	cmd.Flags().StringVar(&suffix, "suffix", "", "account suffix (cbe, abyssinia)")
	cmd.Flags().StringVar(&phone, "phone", "", "payer phone number (cbebirr)")
	cmd.Flags().StringVar(&image, "image", "", "receipt image to upload instead of a reference")
	cmd.MarkFlagsMutuallyExclusive("reference", "image")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
