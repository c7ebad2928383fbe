package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c5t/c5t/internal/sync"
)

// Set by the linker: -ldflags "-X main.version=v0.3.0".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and interchange format",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "c5t %s (sync format %s)\n", version, sync.FormatVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
