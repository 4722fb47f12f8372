package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hyperborea-keygen",
	Short: "Hyperborea identity CLI - keypair generation, addressing, and signing",
	Long: `hyperborea-keygen provides tools for managing the secp256k1 identities that
every Hyperborea server and client holds.

This tool supports:
- Key pair generation
- Deriving a node's v1: address from its public key
- Signing arbitrary messages with a private key`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
