// Package app wires the root Bubble Tea model: view routing, the sync
// lifecycle, and access to the persistence layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/engine"
	"github.com/nhle/mail-triage/internal/keys"
	"github.com/nhle/mail-triage/internal/mailbox"
	"github.com/nhle/mail-triage/internal/mailbox/gmail"
	"github.com/nhle/mail-triage/internal/mailbox/imap"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/internal/theme"
	"github.com/nhle/mail-triage/internal/triage"
	"github.com/nhle/mail-triage/internal/ui"
	"github.com/nhle/mail-triage/internal/ui/detail"
	helpview "github.com/nhle/mail-triage/internal/ui/help"
	"github.com/nhle/mail-triage/internal/ui/inbox"
	"github.com/nhle/mail-triage/internal/ui/setup"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewDetail
	ViewSetup
	ViewHelp
)

// syncDoneMsg carries the outcome of one background sync.
type syncDoneMsg struct {
	report *triage.Report
	err    error
}

// pollTickMsg fires when the periodic sync timer elapses.
type pollTickMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	cfg          *model.AppConfig
	store        store.Store
	orchestrator *triage.Orchestrator
	logger       *zap.Logger
	keys         *keys.KeyMap

	inbox     inbox.Model
	detail    detail.Model
	helpView  helpview.Model
	setupView setup.Model

	ready      bool
	syncing    bool
	lastReport *triage.Report
	syncError  string
	authError  string
}

// New creates the root application model. When the mailbox is not yet
// configured the app starts in the setup flow.
func New(cfg *model.AppConfig, s store.Store, logger *zap.Logger) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		currentView: ViewInbox,
		cfg:         cfg,
		store:       s,
		logger:      logger,
		keys:        k,
		inbox:       inbox.New(s, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		setupView:   setup.New(cfg, 80, 24),
	}

	if configured(cfg) {
		m.orchestrator = buildOrchestrator(cfg, s, logger)
	} else {
		m.currentView = ViewSetup
	}

	return m
}

// configured reports whether the mailbox settings are complete enough to
// attempt a sync.
func configured(cfg *model.AppConfig) bool {
	switch cfg.Mailbox.Provider {
	case "gmail":
		return cfg.Mailbox.CredentialsPath != ""
	case "imap":
		return cfg.Mailbox.Host != "" && cfg.Mailbox.Username != ""
	}
	return false
}

// buildMailbox constructs the provider adapter from the configuration.
func buildMailbox(cfg *model.AppConfig) mailbox.Mailbox {
	if cfg.Mailbox.Provider == "gmail" {
		return gmail.NewAdapter(cfg.Mailbox.CredentialsPath)
	}

	password, err := credential.Get(setup.IMAPPasswordKey)
	if err != nil {
		password = ""
	}
	return imap.NewAdapter(
		cfg.Mailbox.Host,
		cfg.Mailbox.Port,
		cfg.Mailbox.Username,
		password,
	)
}

// buildOrchestrator assembles the sync pipeline from the configuration.
func buildOrchestrator(cfg *model.AppConfig, s store.Store, logger *zap.Logger) *triage.Orchestrator {
	client := engine.NewClient(
		cfg.Engine.BaseURL,
		cfg.Engine.Model,
		cfg.Engine.Temperature,
		logger,
	)
	return triage.New(s, buildMailbox(cfg), client, cfg, logger)
}

// Init loads the inbox and kicks off the first sync, or starts setup.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewSetup {
		return m.setupView.Init()
	}
	return tea.Batch(
		m.inbox.Init(),
		m.startSync(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.inbox.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.setupView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case setup.DoneMsg:
		m.cfg = msg.Config
		m.orchestrator = buildOrchestrator(m.cfg, m.store, m.logger)
		m.currentView = ViewInbox
		return m, tea.Batch(
			m.inbox.Init(),
			m.startSync(),
		)

	case syncDoneMsg:
		m.syncing = false
		if msg.err != nil {
			m.syncError = msg.err.Error()
			var authErr *mailbox.AuthError
			if errors.As(msg.err, &authErr) {
				m.authError = authErr.Message
			}
			return m, m.schedulePoll()
		}
		m.syncError = ""
		m.authError = ""
		m.lastReport = msg.report
		return m, tea.Batch(
			m.inbox.LoadMessages(),
			m.schedulePoll(),
		)

	case pollTickMsg:
		if m.syncing || m.orchestrator == nil {
			return m, m.schedulePoll()
		}
		return m, m.startSync()

	case inbox.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m, m.loadMessage(msg.ExternalID)

	case detail.BackMsg:
		m.currentView = ViewInbox
		return m, m.inbox.LoadMessages()

	case detail.RetriageMsg:
		return m, m.retriage(msg.ExternalID)

	case tea.KeyMsg:
		// Do not intercept while the inbox search input has focus; every
		// keystroke belongs to the query.
		if m.currentView == ViewInbox && m.inbox.Searching() {
			break
		}

		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.currentView == ViewInbox {
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewSetup {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case "r":
			if m.currentView == ViewInbox && !m.syncing && m.orchestrator != nil {
				return m, m.startSync()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.currentView == ViewSetup {
		return m.setupView.View()
	}

	header := m.layout.RenderHeader("Mail Triage", m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the last sync outcome.
func (m Model) syncStatus() string {
	if m.syncing {
		return "syncing..."
	}
	if m.syncError != "" {
		return "⚠ sync failed"
	}
	if m.lastReport != nil {
		return fmt.Sprintf(
			"fetched %d | new %d | triaged %d | errors %d",
			m.lastReport.Fetched,
			m.lastReport.Created,
			m.lastReport.Triaged,
			m.lastReport.Errors,
		)
	}
	return "idle"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authError != "" && m.currentView == ViewInbox {
		return theme.ErrorStyle.Render(m.authError)
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "esc back | y copy draft | t re-triage | j/k scroll"
	default:
		return "q quit | ? help | r sync | / search | u untriaged | c category | tab sort"
	}
}

// startSync runs one pipeline batch in the background.
func (m *Model) startSync() tea.Cmd {
	m.syncing = true
	o := m.orchestrator
	return func() tea.Msg {
		report, err := o.Sync(context.Background())
		return syncDoneMsg{report: report, err: err}
	}
}

// schedulePoll arms the periodic sync timer.
func (m Model) schedulePoll() tea.Cmd {
	interval := time.Duration(m.cfg.Display.PollIntervalSec) * time.Second
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// loadMessage fetches one message from the store for the detail view. The
// detail view consumes the loaded message itself.
func (m Model) loadMessage(externalID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		message, err := s.GetMessage(context.Background(), externalID)
		if err != nil {
			return detail.MessageLoadedMsg{Message: nil}
		}
		return detail.MessageLoadedMsg{Message: message}
	}
}

// retriage clears the stored verdict and runs a new sync so the message
// is re-submitted to the engine.
func (m *Model) retriage(externalID string) tea.Cmd {
	o := m.orchestrator
	m.syncing = true
	return func() tea.Msg {
		if o == nil {
			return nil
		}
		if err := o.ForceRetriage(context.Background(), externalID); err != nil {
			return syncDoneMsg{err: err}
		}
		report, err := o.Sync(context.Background())
		return syncDoneMsg{report: report, err: err}
	}
}
