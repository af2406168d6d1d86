package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/runoshun/boardsync/internal/domain"
)

// Colors defines the palette for terminal output.
var Colors = struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Queued  lipgloss.Color
}{
	Primary: lipgloss.Color("#6C5CE7"), // Purple
	Muted:   lipgloss.Color("#636E72"), // Gray
	Error:   lipgloss.Color("#D63031"), // Red
	Success: lipgloss.Color("#00B894"), // Green
	Warning: lipgloss.Color("#FDCB6E"), // Yellow
	Queued:  lipgloss.Color("#74B9FF"), // Light blue
}

var (
	styleMuted = lipgloss.NewStyle().Foreground(Colors.Muted)
	styleTitle = lipgloss.NewStyle().Foreground(Colors.Primary).Bold(true)
	styleError = lipgloss.NewStyle().Foreground(Colors.Error)
)

// stateColor returns the badge color for a sync state.
func stateColor(s domain.SyncState) lipgloss.Color {
	switch s {
	case domain.StateSynced:
		return Colors.Success
	case domain.StateError:
		return Colors.Error
	case domain.StateLocalOnly:
		return Colors.Warning
	default:
		return Colors.Muted
	}
}

// saveColor returns the tag color for a save outcome.
func saveColor(s domain.SaveStatus) lipgloss.Color {
	switch s {
	case domain.SaveSuccess:
		return Colors.Success
	case domain.SaveQueued:
		return Colors.Queued
	case domain.SaveConflict:
		return Colors.Warning
	default:
		return Colors.Error
	}
}

func stateBadge(s domain.SyncState) string {
	return lipgloss.NewStyle().Foreground(stateColor(s)).Bold(true).Render(string(s))
}

func saveTag(s domain.SaveStatus) string {
	return lipgloss.NewStyle().Foreground(saveColor(s)).Render("[" + string(s) + "]")
}
