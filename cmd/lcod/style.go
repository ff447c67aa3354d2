package main

import (
	"errors"

	"github.com/charmbracelet/lipgloss"

	"lcod/internal/registry"
)

// Color palette kept deliberately small — this is a CLI boundary, not the
// teacher's full TUI theme.
var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorError   = lipgloss.Color("#e53935")
	colorStep    = lipgloss.Color("#2196F3")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(colorStep)
)

func cancelled(err error) bool {
	return errors.Is(err, registry.ErrCancelled)
}
