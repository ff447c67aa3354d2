package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"lcod/internal/runner"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <compose-file>",
	Short: "parse a compose document and print its normalized step array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := runner.LoadDocument(args[0])
		if err != nil {
			return err
		}
		encoded, err := json.MarshalIndent(steps, "", "  ")
		if err != nil {
			return fmt.Errorf("encode normalized steps: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	},
}
