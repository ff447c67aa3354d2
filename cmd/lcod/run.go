package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lcod/internal/runner"
	"lcod/internal/value"
)

var runInputPath string

var runCmd = &cobra.Command{
	Use:   "run <compose-file>",
	Short: "run a compose document and print the resulting state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := loadInput(runInputPath)
		if err != nil {
			return err
		}

		result, err := runner.Run(args[0], input)
		if err != nil {
			return fmt.Errorf("run %q: %w", args[0], err)
		}

		encoded, err := value.Encode(result, true)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(encoded)
		fmt.Fprintln(os.Stderr, successStyle.Render("ok"))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runInputPath, "input", "", "path to a JSON file used as the document's initial state (default: empty object)")
}

// loadInput reads and decodes the --input file, defaulting to an empty
// object when none is given.
func loadInput(path string) (value.Value, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %q: %w", path, err)
	}
	decoded, err := value.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode input %q: %w", path, err)
	}
	return decoded, nil
}
