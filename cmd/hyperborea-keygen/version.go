package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperborea-net/hyperborea/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hyperborea-keygen build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
