package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// palette holds styles bound to the output's renderer, so color is only
// emitted when the writer is a terminal.
type palette struct {
	success lipgloss.Style
	failure lipgloss.Style
	errored lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func newPalette(out io.Writer) palette {
	r := lipgloss.NewRenderer(out)
	return palette{
		success: r.NewStyle().Foreground(colorSuccess),
		failure: r.NewStyle().Foreground(colorError),
		errored: r.NewStyle().Foreground(colorWarning),
		muted:   r.NewStyle().Foreground(colorMuted),
		heading: r.NewStyle().Bold(true),
	}
}
