// Package main provides the coderef CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "coderef",
		Short: "Code intelligence for JavaScript and TypeScript projects",
		Long: `coderef extracts code elements and dynamic imports from JavaScript and
TypeScript sources, assembles a dependency graph, and answers
relationship queries over it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newScanCmd(),
		newQueryCmd(),
		newExportCmd(),
		newDiffCmd(),
		newWatchCmd(),
		newServeCmd(),
	)
	return rootCmd
}
