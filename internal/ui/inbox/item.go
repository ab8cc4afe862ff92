package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/theme"
)

// MessageItem wraps a model.Message so it can be used in a bubbles/list.
type MessageItem struct {
	Message model.Message
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string { return i.Message.Subject }

// Title returns the message subject for the list.
func (i MessageItem) Title() string { return i.Message.Subject }

// Description returns a short summary line for the list.
func (i MessageItem) Description() string {
	parts := []string{
		i.Message.FromAddress,
		i.Message.Snippet,
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering inbox rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single inbox row: triage badges, subject, sender, age.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}

	msg := mi.Message
	isSelected := index == m.Index()

	categoryBadge := theme.CategoryStyle("").Render("PENDING")
	urgencyBadge := ""
	errorBadge := ""
	if msg.Triage != nil {
		categoryBadge = theme.CategoryStyle(msg.Triage.Category).
			Render(string(msg.Triage.Category))
		urgencyBadge = theme.UrgencyStyle(msg.Triage.Urgency).
			Render(string(msg.Triage.Urgency)) + " "
		if msg.Triage.Error != "" {
			errorBadge = theme.ErrorStyle.Render(" ⚠")
		}
	}

	unreadDot := " "
	if msg.IsUnread {
		unreadDot = "●"
	}

	sender := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(msg.FromAddress)

	age := ""
	if msg.ReceivedAt != nil {
		age = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render("  " + relativeTime(*msg.ReceivedAt))
	}

	line := fmt.Sprintf(
		"%s %s %s%s %s%s  %s%s",
		unreadDot, categoryBadge, urgencyBadge, msg.Subject,
		sender, errorBadge, confidenceLabel(msg.Triage), age,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// confidenceLabel renders the triage confidence as a compact percentage.
func confidenceLabel(t *model.TriageResult) string {
	if t == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(fmt.Sprintf("%.0f%%", t.Confidence*100))
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
