// Package main implements the lcod CLI: the on-disk entry point for running,
// validating, normalizing, and watching composition-kernel documents. It is
// a thin client of internal/runner, internal/compose, and internal/manifest —
// none of its own logic is part of the kernel's core contract.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"lcod/internal/logging"
)

var (
	verbose   bool
	workspace string
)

var rootCmd = &cobra.Command{
	Use:   "lcod",
	Short: "lcod runs and inspects composition-kernel documents",
	Long: `lcod is the CLI boundary around the composition kernel: it loads a
compose document, wires the built-in flow/axiom/tooling components, and
runs, validates, normalizes, or watches it. A sibling lcp.toml is reported
by validate and watched by watch; call targets are not rewritten against it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logging.SetLevel(zapcore.DebugLevel)
		}
		if workspace != "" {
			if err := os.Chdir(workspace); err != nil {
				return fmt.Errorf("workspace %q: %w", workspace, err)
			}
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "directory compose-document-relative paths resolve against (default: current directory)")

	rootCmd.AddCommand(runCmd, validateCmd, normalizeCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		if cancelled(err) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
