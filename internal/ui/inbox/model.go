// Package inbox renders the triaged message list.
package inbox

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-triage/internal/keys"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/internal/theme"
)

// MessagesLoadedMsg is sent when messages have been loaded from the store.
type MessagesLoadedMsg struct {
	Messages []model.Message
}

// SelectedMessageMsg is sent when the user opens a message's detail view.
type SelectedMessageMsg struct {
	ExternalID string
}

// sortModes defines the available sort modes cycled by Tab.
var sortModes = []string{
	"received_at",
	"from_address",
	"subject",
	"fetched_at",
}

// Model is the inbox list view component.
type Model struct {
	list          list.Model
	store         store.Store
	keys          *keys.KeyMap
	filter        store.MessageFilter
	categoryIndex int
	sortIndex     int
	searchMode    bool
	searchInput   textinput.Model
	width         int
	height        int
}

// New creates a new inbox model.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	delegate := ItemDelegate{}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search messages..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:  l,
		store: s,
		keys:  k,
		filter: store.MessageFilter{
			SortBy:   "received_at",
			SortDesc: true,
		},
		categoryIndex: -1,
		searchInput:   si,
		width:         width,
		height:        height,
	}
}

// Init returns a command that loads the initial set of messages.
func (m Model) Init() tea.Cmd {
	return m.LoadMessages()
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case MessagesLoadedMsg:
		items := make([]list.Item, len(msg.Messages))
		for i, message := range msg.Messages {
			items[i] = MessageItem{Message: message}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	// Delegate to list model for other messages
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		if query != "" {
			m.filter.Query = &query
		} else {
			m.filter.Query = nil
		}
		return m, m.LoadMessages()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = nil
		return m, m.LoadMessages()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMessageMsg{ExternalID: item.Message.ExternalID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.FilterUntriaged):
		if m.filter.NeedsTriage == nil {
			yes := true
			m.filter.NeedsTriage = &yes
		} else {
			m.filter.NeedsTriage = nil
		}
		return m, m.LoadMessages()

	case key.Matches(msg, m.keys.FilterCategory):
		m.cycleCategoryFilter()
		return m, m.LoadMessages()

	case key.Matches(msg, m.keys.CycleSort):
		m.sortIndex = (m.sortIndex + 1) % len(sortModes)
		m.filter.SortBy = sortModes[m.sortIndex]
		return m, m.LoadMessages()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// cycleCategoryFilter steps through all -> each category -> all again.
func (m *Model) cycleCategoryFilter() {
	m.categoryIndex++
	if m.categoryIndex >= len(model.Categories) {
		m.categoryIndex = -1
		m.filter.Category = nil
		return
	}
	c := string(model.Categories[m.categoryIndex])
	m.filter.Category = &c
}

// View renders the inbox view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no messages are available.
func (m Model) renderEmptyState() string {
	hasFilters := m.filter.Category != nil ||
		m.filter.NeedsTriage != nil ||
		m.filter.Query != nil

	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if hasFilters {
		return style.Render("No matching messages.\nTry adjusting your filters.")
	}

	return style.Render(
		"No messages yet.\n\n" +
			"Press r to sync your mailbox.",
	)
}

// LoadMessages returns a tea.Cmd that queries the store with the current
// filter.
func (m Model) LoadMessages() tea.Cmd {
	filter := m.filter
	s := m.store
	return func() tea.Msg {
		messages, err := s.GetMessages(context.Background(), filter)
		if err != nil {
			return MessagesLoadedMsg{Messages: nil}
		}
		return MessagesLoadedMsg{Messages: messages}
	}
}

// Searching reports whether the search input currently owns the keyboard.
// The parent must not intercept shortcut keys while this is true.
func (m Model) Searching() bool {
	return m.searchMode
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
