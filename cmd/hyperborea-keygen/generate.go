package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperborea-net/hyperborea/identity"
)

var (
	genOutputFile string
	genJSON       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new secp256k1 key pair",
	Example: `  # Print a new key pair as JSON to stdout
  hyperborea-keygen generate

  # Save it to a file instead
  hyperborea-keygen generate --output node.key`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&genOutputFile, "output", "o", "", "Output file (default: stdout)")
	generateCmd.Flags().BoolVar(&genJSON, "json", true, "Accepted but not read: output is always JSON with private_key_hex, public_key_hex, and address")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	keys, err := identity.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	pub := keys.PublicKey()
	output := map[string]string{
		"private_key_hex": hex.EncodeToString(keys.PrivateKeyBytes()),
		"public_key_hex":  hex.EncodeToString(pub[:]),
		"address":         identity.Encode(pub),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if genOutputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(genOutputFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Printf("Key saved to: %s\n", genOutputFile)
	return nil
}
