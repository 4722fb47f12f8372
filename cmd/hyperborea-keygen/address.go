package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperborea-net/hyperborea/identity"
)

var addressCmd = &cobra.Command{
	Use:   "address <public-key-hex>",
	Short: "Derive a v1: address from a hex-encoded public key",
	Args:  cobra.ExactArgs(1),
	Example: `  hyperborea-keygen address 02abcdef...`,
	RunE: runAddress,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func runAddress(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("invalid hex public key: %w", err)
	}
	if len(raw) != identity.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", identity.PublicKeySize, len(raw))
	}
	var pub identity.PublicKey
	copy(pub[:], raw)

	fmt.Println(identity.Encode(pub))
	return nil
}
