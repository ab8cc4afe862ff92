// Package detail renders a single message with its triage verdict, reply
// draft, and summary.
package detail

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-triage/internal/keys"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox.
type BackMsg struct{}

// MessageLoadedMsg carries the loaded message.
type MessageLoadedMsg struct {
	Message *model.Message
}

// RetriageMsg asks the parent to clear the triage result and re-sync.
type RetriageMsg struct {
	ExternalID string
}

// DraftCopiedMsg reports the result of a clipboard copy.
type DraftCopiedMsg struct {
	Err error
}

// Model is the message detail view component.
type Model struct {
	message  *model.Message
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
	notice   string
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case MessageLoadedMsg:
		m.SetMessage(msg.Message)
		return m, nil

	case DraftCopiedMsg:
		if msg.Err != nil {
			m.notice = "clipboard copy failed"
		} else {
			m.notice = "reply draft copied"
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.CopyDraft):
			if m.message != nil && m.message.Triage != nil {
				draft := m.message.Triage.ReplyDraft
				return m, func() tea.Msg {
					return DraftCopiedMsg{Err: clipboard.WriteAll(draft)}
				}
			}

		case key.Matches(msg, m.keys.Retriage):
			if m.message != nil {
				id := m.message.ExternalID
				return m, func() tea.Msg {
					return RetriageMsg{ExternalID: id}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return loadingStyle.Render("Loading message...")
	}

	if m.message == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	view := m.viewport.View()
	if m.notice != "" {
		noticeBar := theme.HelpStyle.Render(m.notice)
		view = lipgloss.JoinVertical(lipgloss.Left, view, noticeBar)
	}
	return view
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.message == nil {
		return ""
	}

	msg := m.message
	var sections []string

	// Subject
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(msg.Subject))

	// Badges line: category + urgency + confidence
	if msg.Triage != nil {
		categoryBadge := theme.CategoryStyle(msg.Triage.Category).
			Render(string(msg.Triage.Category))
		urgencyBadge := theme.UrgencyStyle(msg.Triage.Urgency).
			Render(string(msg.Triage.Urgency))
		confidence := lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render(fmt.Sprintf("confidence %.0f%%", msg.Triage.Confidence*100))

		badgeLine := lipgloss.JoinHorizontal(
			lipgloss.Top, categoryBadge, "  ", urgencyBadge, "  ", confidence,
		)
		sections = append(sections, badgeLine)

		if msg.Triage.Error != "" {
			sections = append(sections, theme.ErrorStyle.Render(
				"triage fallback: "+msg.Triage.Error,
			))
		}
	} else {
		sections = append(sections, theme.HelpStyle.Render("not yet triaged"))
	}
	sections = append(sections, "")

	// Metadata table
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if msg.FromAddress != "" {
		sections = append(sections, fmt.Sprintf(
			"%s      %s",
			metaStyle.Render("From:"),
			valStyle.Render(msg.FromAddress),
		))
	}
	if msg.ReceivedAt != nil {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Received:"),
			valStyle.Render(msg.ReceivedAt.Format("2006-01-02 15:04")),
		))
	}
	if msg.ThreadID != "" {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("Thread:"),
			valStyle.Render(msg.ThreadID),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite)

	// Summary section, when present
	if msg.Summary != nil && msg.Summary.Error == "" {
		sections = append(sections, "", separator, "")

		title := "Summary"
		if msg.Summary.Title != "" {
			title = "Summary: " + msg.Summary.Title
		}
		sections = append(sections, headerStyle.Render(title))
		sections = append(sections, msg.Summary.Summary)

		for _, point := range msg.Summary.KeyPoints {
			sections = append(sections, "  • "+point)
		}
	}

	// Reply draft section
	if msg.Triage != nil && msg.Triage.ReplyDraft != "" {
		sections = append(sections, "", separator, "")
		sections = append(sections, headerStyle.Render("Reply draft (y to copy)"))
		sections = append(sections, msg.Triage.ReplyDraft)
	}

	// Body
	sections = append(sections, "", separator, "")
	sections = append(sections, headerStyle.Render("Message"))

	body := msg.CleanBody
	if body == "" {
		body = msg.Snippet
	}
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No content")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetMessage updates the message being displayed and re-renders.
func (m *Model) SetMessage(msg *model.Message) {
	m.message = msg
	m.loading = false
	m.notice = ""
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
