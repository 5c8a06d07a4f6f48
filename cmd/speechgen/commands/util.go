//go:build !ios && !android && (amd64 || arm64)

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
)

// inputText returns the text to process: the --text flag, then the
// positional arguments, then stdin when the only argument is "-".
func inputText(cmd *cobra.Command, flagText string, args []string) (string, error) {
	if flagText != "" {
		return flagText, nil
	}
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("text is required, use --text, arguments, or - for stdin")
}

// saveToFile saves data to a file
func saveToFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// formatDuration formats duration in seconds to human readable format
func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	mins := int(seconds / 60)
	secs := int(seconds) % 60
	return fmt.Sprintf("%dm%ds", mins, secs)
}

func status(ok bool, text string) string {
	if ok {
		return okStyle.Render("✓") + " " + text
	}
	return failStyle.Render("✗") + " " + text
}
