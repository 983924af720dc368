package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strata-db/stratadb/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "stratadb",
	Short: "StrataDB entity engine CLI",
	Long: `StrataDB compiles typed entity operations into dialect-correct SQL.

The CLI reads its connection settings from .stratadb.yml in the current
directory. Run 'stratadb ping' to verify the configuration.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads .stratadb.yml from the working directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.NewLoader(wd).Load()
}

func printInfo(format string, args ...any) {
	fmt.Printf("%s %s\n", color.CyanString("→"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	fmt.Printf("%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}
