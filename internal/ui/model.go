// Package ui is the terminal chat window. The bubbletea Update loop owns the
// conversation; each generation runs as a tea.Cmd whose result comes back
// as a replyMsg.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"AssistChat/internal/chatbot"
	"AssistChat/internal/conversation"
	"AssistChat/internal/session"
)

const (
	statusReady    = "Ready"
	statusThinking = "Thinking…"
)

// replyMsg carries a finished job back to Update
type replyMsg struct {
	result conversation.Result
}

// Model is the bubbletea model of the chat window
type Model struct {
	ctx    context.Context
	conv   *conversation.Conversation
	runner *chatbot.Runner

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	theme    Theme

	status      string
	confirmQuit bool
	width       int
	height      int
	ready       bool
}

// New creates the chat window model. ctx bounds every generation.
func New(ctx context.Context, conv *conversation.Conversation, runner *chatbot.Runner) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question…"
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		conv:     conv,
		runner:   runner,
		viewport: viewport.New(80, 20),
		input:    ta,
		spinner:  sp,
		theme:    DarkTheme(),
		status:   statusReady,
		width:    80,
	}
	m.renderer = newRenderer(m.theme, m.width)
	m.refresh()
	return m
}

func newRenderer(theme Theme, width int) *glamour.TermRenderer {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme.GlamourStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init starts the cursor blink
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles one message
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replyMsg:
		if _, ok := m.conv.Apply(msg.result); ok {
			m.status = statusReady
			m.confirmQuit = false
			m.refresh()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.conv.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.conv.Busy() && !m.confirmQuit {
			m.confirmQuit = true
			m.status = "The assistant is still working. Press again to quit."
			return m, nil
		}
		return m, tea.Quit

	case "ctrl+l":
		if m.conv.Reset() {
			m.status = "Conversation cleared. The pending reply will be discarded."
		} else {
			m.status = "Conversation cleared."
		}
		m.confirmQuit = false
		m.refresh()
		return m, nil

	case "ctrl+t":
		if m.theme.Name == "dark" {
			m.theme = LightTheme()
		} else {
			m.theme = DarkTheme()
		}
		m.renderer = newRenderer(m.theme, m.width)
		m.refresh()
		return m, nil

	case "alt+enter":
		m.input.InsertString("\n")
		return m, nil

	case "enter":
		return m.submit()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.conv.Busy() {
		m.status = "Still working on the previous question."
		return m, nil
	}

	job, ok := m.conv.Submit(strings.TrimSpace(m.input.Value()))
	if !ok {
		return m, nil
	}

	m.input.Reset()
	m.status = statusThinking
	m.refresh()
	return m, tea.Batch(m.runJob(job), m.spinner.Tick)
}

// runJob runs on bubbletea's command goroutine and only returns a message
func (m Model) runJob(job *conversation.Job) tea.Cmd {
	ctx, runner := m.ctx, m.runner
	return func() tea.Msg {
		return replyMsg{result: runner.Run(ctx, job)}
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	m.input.SetWidth(width - 2)
	inputHeight := m.input.Height() + 2 // border
	headerHeight := 1
	statusHeight := 1

	m.viewport.Width = width
	m.viewport.Height = height - inputHeight - headerHeight - statusHeight
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}

	m.renderer = newRenderer(m.theme, width)
	m.ready = true
	m.refresh()
}

// refresh re-renders the transcript and scrolls to the newest entry
func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	var b strings.Builder
	b.WriteString(m.renderEntry(session.Entry{Speaker: "Assistant", Content: chatbot.WelcomeMessage, Role: session.RoleAssistant}))
	for _, e := range m.conv.Entries() {
		b.WriteString(m.renderEntry(e))
	}
	return b.String()
}

func (m Model) renderEntry(e session.Entry) string {
	header := e.Speaker + ":"
	if !e.Timestamp.IsZero() {
		header = fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04"), header)
	}

	body := strings.TrimSpace(e.Content)
	switch e.Role {
	case session.RoleUser:
		body = m.theme.User.Render(body)
	case session.RoleError:
		body = m.theme.Error.Render(body)
	default:
		if m.renderer != nil {
			if out, err := m.renderer.Render(body); err == nil {
				body = strings.TrimRight(out, "\n")
				break
			}
		}
		body = m.theme.Assistant.Render(body)
	}

	return m.theme.Timestamp.Render(header) + "\n" + body + "\n\n"
}

// View renders the window
func (m Model) View() string {
	if !m.ready {
		return "Initializing…"
	}

	title := m.theme.Title.Render("🤖 AI Assistant")
	hints := m.theme.Timestamp.Render("  enter send · alt+enter newline · ctrl+l clear · ctrl+t theme · esc quit")

	status := m.status
	if m.conv.Busy() && status == statusThinking {
		status = m.spinner.View() + " " + status
	}
	counter := fmt.Sprintf("Messages: %d", m.conv.UserTurns())
	gap := m.width - lipgloss.Width(status) - lipgloss.Width(counter)
	if gap < 1 {
		gap = 1
	}
	statusLine := m.theme.Status.Render(status + strings.Repeat(" ", gap) + counter)

	return lipgloss.JoinVertical(lipgloss.Left,
		title+hints,
		m.viewport.View(),
		m.theme.Input.Render(m.input.View()),
		statusLine,
	)
}

// Run starts the program on the alternate screen and blocks until exit
func Run(ctx context.Context, conv *conversation.Conversation, runner *chatbot.Runner) error {
	p := tea.NewProgram(New(ctx, conv, runner), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
