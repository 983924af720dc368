package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify the configured database connection",
	Long: `Open the database from .stratadb.yml, ping it, and report latency.

Examples:
  stratadb ping
  stratadb ping --timeout 2s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			printError("%v", err)
			return err
		}
		eng, err := cfg.NewEngine()
		if err != nil {
			printError("%v", err)
			return err
		}
		defer eng.Close()

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		printInfo("Connecting to %s...", cfg.Database.Dialect)
		start := time.Now()
		if err := eng.Connect(ctx); err != nil {
			printError("%v", err)
			return err
		}
		if err := eng.Ping(ctx); err != nil {
			printError("%v", err)
			return err
		}
		printSuccess("Connected (%s, strategy %s, %s)",
			cfg.Database.Dialect, eng.Strategy(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "connection timeout")
	rootCmd.AddCommand(pingCmd)
}
