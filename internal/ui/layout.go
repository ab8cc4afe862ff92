package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-triage/internal/theme"
)

// Layout manages the terminal frame: a one-line header carrying the sync
// status, the content area, and a one-line status bar with key hints.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top bar: the application title on the left and
// the sync status on the right. On terminals too narrow for both, the
// status is dropped rather than the title.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Align(lipgloss.Right).Render(syncStatus)

	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		right = ""
		gap = l.Width - lipgloss.Width(left)
		if gap < 0 {
			gap = 0
		}
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		fillBar(theme.HeaderStyle, gap),
		right,
	)
}

// RenderStatusBar renders the bottom bar with key hints, padded to the
// full terminal width.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		fillBar(theme.StatusBarStyle, gap),
	)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}

// fillBar stretches a bar style across the remaining width so the bar's
// background spans the whole line.
func fillBar(style lipgloss.Style, width int) string {
	if width <= 0 {
		return ""
	}
	return style.Render(
		lipgloss.NewStyle().
			Width(width).
			Background(style.GetBackground()).
			Render(""),
	)
}
