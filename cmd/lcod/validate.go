package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lcod/internal/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate <compose-file>",
	Short: "parse a compose document and report normalization errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := runner.LoadDocument(args[0])
		if err != nil {
			return err
		}
		if m, err := runner.LoadManifest(args[0]); err != nil {
			return fmt.Errorf("load manifest: %w", err)
		} else if m != nil {
			fmt.Fprintln(os.Stderr, stepStyle.Render(fmt.Sprintf("manifest id=%s", m.ID)))
		}
		fmt.Fprintln(os.Stderr, successStyle.Render(fmt.Sprintf("ok: %d top-level step(s)", len(steps))))
		return nil
	},
}
