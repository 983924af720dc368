package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
var Version = "0.4.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show StrataDB version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("StrataDB v%s\n", Version)
		if verbose {
			fmt.Printf("  go:       %s\n", runtime.Version())
			fmt.Printf("  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
