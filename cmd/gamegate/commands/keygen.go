package commands

import (
	"fmt"
	"time"

	"github.com/layer-3/gamegate/config"
	ophttp "github.com/layer-3/gamegate/transport/http"
	"github.com/spf13/cobra"
)

var (
	aesKeySize  int
	hmacKeySize int

	opsSecret  string
	opsSubject string
	opsTTL     time.Duration
)

// NewKeygenCmd produces a command printing fresh token secrets
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print new hex encoded token keys",
		RunE:  keygen,
	}
	cmd.Flags().IntVar(&aesKeySize, "aes-size", 16, "AES key size in bytes: 16, 24 or 32")
	cmd.Flags().IntVar(&hmacKeySize, "hmac-size", 32, "HMAC key size in bytes, at least 32")
	return cmd
}

func keygen(cmd *cobra.Command, args []string) error {
	switch aesKeySize {
	case 16, 24, 32:
	default:
		return fmt.Errorf("aes-size must be 16, 24 or 32")
	}
	if hmacKeySize < 32 {
		return fmt.Errorf("hmac-size must be at least 32")
	}

	aesKey, err := config.GenerateKey(aesKeySize)
	if err != nil {
		return fmt.Errorf("Error generating AES key: %w", err)
	}
	hmacKey, err := config.GenerateKey(hmacKeySize)
	if err != nil {
		return fmt.Errorf("Error generating HMAC key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "aes-key = %q\nhmac-key = %q\n", aesKey, hmacKey)
	return nil
}

// NewOpsTokenCmd produces a command issuing operator API tokens
func NewOpsTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops-token",
		Short: "Issue a bearer token for the operator API",
		RunE:  opsToken,
	}
	cmd.Flags().StringVar(&opsSecret, "secret", "", "Secret configured as ops.secret")
	cmd.Flags().StringVar(&opsSubject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&opsTTL, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func opsToken(cmd *cobra.Command, args []string) error {
	if len(opsSecret) < 32 {
		return fmt.Errorf("secret must be at least 32 characters")
	}
	token, err := ophttp.IssueOperatorToken([]byte(opsSecret), opsSubject, opsTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
