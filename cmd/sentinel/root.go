package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grammar-sentinel",
	Short: "Check text against a grammar service and highlight flagged words",
	Long: `Grammar Sentinel logs in to a remote grammar-checking service, submits text
and shows it with every flagged word highlighted, in the terminal or in a
live browser preview.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}
