package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperborea-net/hyperborea/identity"
)

var (
	signKeyHex      string
	signMessage     string
	signMessageFile string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message with a hex-encoded private key",
	Long: `Sign a message using an RFC 6979 deterministic secp256k1 signature.

The message can come from --message, --message-file, or stdin.`,
	Example: `  # Sign a literal string
  hyperborea-keygen sign --key deadbeef... --message "hello"

  # Sign stdin
  echo "hello" | hyperborea-keygen sign --key deadbeef...`,
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signKeyHex, "key", "", "Hex-encoded private key (required)")
	signCmd.Flags().StringVarP(&signMessage, "message", "m", "", "Message to sign")
	signCmd.Flags().StringVar(&signMessageFile, "message-file", "", "File containing the message to sign")
	_ = signCmd.MarkFlagRequired("key")
}

func runSign(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(signKeyHex)
	if err != nil {
		return fmt.Errorf("invalid hex private key: %w", err)
	}
	keys, err := identity.FromPrivateKeyBytes(raw)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}

	message, err := readMessage()
	if err != nil {
		return err
	}

	sig := keys.Sign(message)
	fmt.Println(base64.StdEncoding.EncodeToString(sig[:]))
	return nil
}

func readMessage() ([]byte, error) {
	if signMessage != "" {
		return []byte(signMessage), nil
	}
	if signMessageFile != "" {
		data, err := os.ReadFile(signMessageFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read message file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no message provided")
	}
	return data, nil
}
