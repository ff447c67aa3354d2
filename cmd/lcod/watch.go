package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"lcod/internal/logging"
	"lcod/internal/runner"
)

var watchLog = logging.Named("cmd.watch")

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <compose-file>",
	Short: "re-run a compose document each time it or its lcp.toml changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(args[0])
	},
}

func runWatch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	manifestPath := filepath.Join(dir, "lcp.toml")
	runOnce := func() {
		input, _ := loadInput(runInputPath)
		result, err := runner.Run(path, input)
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
			return
		}
		m, _ := runner.LoadManifest(path)
		if m != nil {
			watchLog.Debugw("manifest present", "id", m.ID)
		}
		fmt.Fprintln(os.Stderr, successStyle.Render(fmt.Sprintf("ran %s", filepath.Base(path))))
		_ = result
	}

	runOnce()

	var debounceAt time.Time
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path && event.Name != manifestPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			watchLog.Debugw("change detected", "path", event.Name, "op", event.Op.String())
			debounceAt = time.Now().Add(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			watchLog.Errorw("watcher error", "error", err)

		case <-ticker.C:
			if !debounceAt.IsZero() && time.Now().After(debounceAt) {
				debounceAt = time.Time{}
				runOnce()
			}
		}
	}
}
