// Package setup implements the first-run configuration flow: pick a
// mailbox provider, enter its settings, test the connection, and save
// the config file.
package setup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/mailbox"
	"github.com/nhle/mail-triage/internal/mailbox/gmail"
	"github.com/nhle/mail-triage/internal/mailbox/imap"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/theme"
)

// IMAPPasswordKey is the keyring entry holding the IMAP password.
const IMAPPasswordKey = "imap-password"

// Mode represents the current state of the setup view.
type Mode int

const (
	ModeSelectProvider Mode = iota // Pick gmail or imap
	ModeFormGmail                  // Gmail credentials path + auth code
	ModeFormIMAP                   // IMAP connection form
	ModeFormEngine                 // Generation engine settings
	ModeValidating                 // Testing connection
	ModeResult                     // Show validation result
)

// DoneMsg signals setup completed and the saved config should be used.
type DoneMsg struct {
	Config *model.AppConfig
}

// validateResultMsg carries the result of a connection test.
type validateResultMsg struct {
	account string
	err     error
}

// Model is the Bubble Tea model for the setup flow.
type Model struct {
	mode   Mode
	cfg    *model.AppConfig
	width  int
	height int

	providerSelect *huh.Form
	gmailForm      *huh.Form
	imapForm       *huh.Form
	engineForm     *huh.Form

	// Form field values (huh binds to these)
	selectedProvider string
	formCredsPath    string
	formAuthCode     string
	formHost         string
	formPort         string
	formUsername     string
	formPassword     string
	formBaseURL      string
	formModel        string

	validating  bool
	validResult string
	validError  error
	spinner     spinner.Model

	statusMsg string
}

// New creates a setup model seeded with the current configuration.
func New(cfg *model.AppConfig, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:          ModeSelectProvider,
		cfg:           cfg,
		spinner:       sp,
		width:         width,
		height:        height,
		formCredsPath: cfg.Mailbox.CredentialsPath,
		formHost:      cfg.Mailbox.Host,
		formPort:      cfg.Mailbox.Port,
		formUsername:  cfg.Mailbox.Username,
		formBaseURL:   cfg.Engine.BaseURL,
		formModel:     cfg.Engine.Model,
	}
	m.providerSelect = m.buildProviderForm()
	return m
}

// Init starts the provider selection form.
func (m Model) Init() tea.Cmd {
	return m.providerSelect.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case validateResultMsg:
		m.validating = false
		m.validResult = msg.account
		m.validError = msg.err
		m.mode = ModeResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeResult {
			return m.handleResultKeys(msg)
		}
		if m.mode == ModeValidating {
			if msg.String() == "esc" {
				m.mode = ModeFormEngine
				m.validating = false
			}
			return m, nil
		}
	}

	return m.updateActiveForm(msg)
}

// handleResultKeys processes key events on the validation result screen.
func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.validError != nil {
			// Back to the provider form to fix the settings.
			m.mode = ModeSelectProvider
			m.providerSelect = m.buildProviderForm()
			return m, m.providerSelect.Init()
		}
		return m.finish()
	case "esc":
		m.mode = ModeSelectProvider
		m.providerSelect = m.buildProviderForm()
		return m, m.providerSelect.Init()
	}
	return m, nil
}

// finish persists the config file and signals completion.
func (m Model) finish() (Model, tea.Cmd) {
	if err := model.SaveConfig(model.DefaultConfigPath(), m.cfg); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving config: %v", err)
		return m, nil
	}
	cfg := m.cfg
	return m, func() tea.Msg { return DoneMsg{Config: cfg} }
}

// updateActiveForm dispatches messages to the currently active form.
func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeSelectProvider:
		return m.updateProviderSelect(msg)
	case ModeFormGmail:
		return m.updateGmailForm(msg)
	case ModeFormIMAP:
		return m.updateIMAPForm(msg)
	case ModeFormEngine:
		return m.updateEngineForm(msg)
	}
	return m, nil
}

// --- Provider selection ---

func (m *Model) buildProviderForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Mailbox Provider").
				Description("Where should unread messages be fetched from?").
				Options(
					huh.NewOption("Gmail - OAuth via the Gmail API", "gmail"),
					huh.NewOption("IMAP - Generic IMAP server over TLS", "imap"),
				).
				Value(&m.selectedProvider),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateProviderSelect(msg tea.Msg) (Model, tea.Cmd) {
	if m.providerSelect == nil {
		return m, nil
	}

	mdl, cmd := m.providerSelect.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.providerSelect = f
	}

	if m.providerSelect.State == huh.StateCompleted {
		m.cfg.Mailbox.Provider = m.selectedProvider
		switch m.selectedProvider {
		case "gmail":
			m.mode = ModeFormGmail
			m.gmailForm = m.buildGmailForm()
			return m, m.gmailForm.Init()
		default:
			m.mode = ModeFormIMAP
			m.imapForm = m.buildIMAPForm()
			return m, m.imapForm.Init()
		}
	}
	if m.providerSelect.State == huh.StateAborted {
		return m, tea.Quit
	}

	return m, cmd
}

// --- Gmail form ---

func (m *Model) buildGmailForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Credentials Path").
				Description("Path to the OAuth credentials.json from Google Cloud").
				Placeholder("~/Downloads/credentials.json").
				Value(&m.formCredsPath).
				Validate(validateRequired("Credentials path")),
			huh.NewNote().
				Title("Authorization").
				DescriptionFunc(func() string {
					authURL, err := gmail.AuthURL(m.formCredsPath)
					if err != nil {
						return "Enter a valid credentials path above first."
					}
					return "Visit this URL, authorize, then paste the code below:\n" + authURL
				}, &m.formCredsPath),
			huh.NewInput().
				Title("Authorization Code").
				Value(&m.formAuthCode).
				Validate(validateRequired("Authorization code")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateGmailForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.gmailForm == nil {
		return m, nil
	}

	mdl, cmd := m.gmailForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.gmailForm = f
	}

	if m.gmailForm.State == huh.StateCompleted {
		m.cfg.Mailbox.CredentialsPath = m.formCredsPath
		if err := gmail.Exchange(
			context.Background(), m.formCredsPath, strings.TrimSpace(m.formAuthCode),
		); err != nil {
			m.validating = false
			m.validError = err
			m.mode = ModeResult
			return m, nil
		}
		m.mode = ModeFormEngine
		m.engineForm = m.buildEngineForm()
		return m, m.engineForm.Init()
	}
	if m.gmailForm.State == huh.StateAborted {
		m.mode = ModeSelectProvider
		m.providerSelect = m.buildProviderForm()
		return m, m.providerSelect.Init()
	}

	return m, cmd
}

// --- IMAP form ---

func (m *Model) buildIMAPForm() *huh.Form {
	if m.formPort == "" {
		m.formPort = "993"
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&m.formHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&m.formPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Description("Mailbox account username").
				Placeholder("user@example.com").
				Value(&m.formUsername).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateIMAPForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.imapForm == nil {
		return m, nil
	}

	mdl, cmd := m.imapForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.imapForm = f
	}

	if m.imapForm.State == huh.StateCompleted {
		m.cfg.Mailbox.Host = m.formHost
		m.cfg.Mailbox.Port = m.formPort
		m.cfg.Mailbox.Username = m.formUsername

		if err := credential.Set(IMAPPasswordKey, m.formPassword); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving credential: %v", err)
			return m, nil
		}

		m.mode = ModeFormEngine
		m.engineForm = m.buildEngineForm()
		return m, m.engineForm.Init()
	}
	if m.imapForm.State == huh.StateAborted {
		m.mode = ModeSelectProvider
		m.providerSelect = m.buildProviderForm()
		return m, m.providerSelect.Init()
	}

	return m, cmd
}

// --- Engine form ---

func (m *Model) buildEngineForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Engine URL").
				Description("Base URL of the local generation engine").
				Placeholder("http://localhost:11434").
				Value(&m.formBaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Model").
				Description("Model name used for triage and summaries").
				Placeholder("llama3.1").
				Value(&m.formModel).
				Validate(validateRequired("Model")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateEngineForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.engineForm == nil {
		return m, nil
	}

	mdl, cmd := m.engineForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.engineForm = f
	}

	if m.engineForm.State == huh.StateCompleted {
		m.cfg.Engine.BaseURL = m.formBaseURL
		m.cfg.Engine.Model = m.formModel

		m.mode = ModeValidating
		m.validating = true
		return m, tea.Batch(
			m.spinner.Tick,
			m.validateMailbox(),
		)
	}
	if m.engineForm.State == huh.StateAborted {
		m.mode = ModeSelectProvider
		m.providerSelect = m.buildProviderForm()
		return m, m.providerSelect.Init()
	}

	return m, cmd
}

// validateMailbox tests the mailbox connection with the entered settings.
func (m Model) validateMailbox() tea.Cmd {
	cfg := m.cfg.Mailbox
	password := m.formPassword
	return func() tea.Msg {
		ctx := context.Background()

		var mbx mailbox.Mailbox
		switch cfg.Provider {
		case "gmail":
			mbx = gmail.NewAdapter(cfg.CredentialsPath)
		default:
			mbx = imap.NewAdapter(cfg.Host, cfg.Port, cfg.Username, password)
		}

		account, err := mbx.ValidateConnection(ctx)
		return validateResultMsg{account: account, err: err}
	}
}

// --- View ---

// View renders the setup UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeSelectProvider:
		return m.viewForm(m.providerSelect)
	case ModeFormGmail:
		return m.viewForm(m.gmailForm)
	case ModeFormIMAP:
		return m.viewForm(m.imapForm)
	case ModeFormEngine:
		return m.viewForm(m.engineForm)
	case ModeValidating:
		return m.viewValidating()
	case ModeResult:
		return m.viewResult()
	default:
		return ""
	}
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}

	content := f.View()
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		content += "\n\n" + statusStyle.Render(m.statusMsg)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing mailbox connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back to settings")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Authenticated as: %s", m.validResult) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter save and continue | esc back")
	}

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., http://localhost:11434)")
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
