package app

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/tests/testutil"
)

func testModel(t *testing.T) Model {
	cfg := &model.AppConfig{
		Mailbox: model.MailboxConfig{
			Provider:   "imap",
			Host:       "imap.example.com",
			Port:       "993",
			Username:   "user@example.com",
			MaxResults: 25,
		},
		Engine: model.EngineConfig{
			BaseURL:    "http://localhost:11434",
			Model:      "llama3.1",
			TimeoutSec: 5,
		},
		Triage: model.TriageConfig{Workers: 1},
	}
	return New(cfg, testutil.NewTestStore(t), nil)
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next, cmd
}

func TestSearchInputOwnsShortcutKeys(t *testing.T) {
	m := testModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	require.Equal(t, ViewInbox, m.currentView)

	m, _ = update(t, m, runeKey('/'))
	require.True(t, m.inbox.Searching())

	// q belongs to the query while searching, it must not quit.
	m, cmd := update(t, m, runeKey('q'))
	if cmd != nil {
		_, quit := cmd().(tea.QuitMsg)
		assert.False(t, quit, "typing q into the search input quit the application")
	}

	// r must not start a sync.
	m, _ = update(t, m, runeKey('r'))
	assert.False(t, m.syncing)

	// ? must not switch to the help view.
	m, _ = update(t, m, runeKey('?'))
	assert.Equal(t, ViewInbox, m.currentView)
	assert.True(t, m.inbox.Searching())
}

func TestShortcutsResumeAfterLeavingSearch(t *testing.T) {
	m := testModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, runeKey('/'))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, m.inbox.Searching())

	_, cmd := update(t, m, runeKey('q'))
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
}
