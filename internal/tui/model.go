package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/alumnirag/internal/composer"
	"github.com/kalambet/alumnirag/internal/pipeline"
	"github.com/kalambet/alumnirag/internal/temporal"
)

// Runner is the TUI-facing subset of the conversation controller.
type Runner interface {
	Run(ctx context.Context, question string, prior []pipeline.Message) (*pipeline.Turn, error)
	Filter() temporal.Filter
}

// answerMsg carries the outcome of one asynchronous turn back to Update.
type answerMsg struct {
	question string
	turn     *pipeline.Turn
	err      error
}

// Model is the Bubble Tea model for the interactive alumni chat.
type Model struct {
	runner   Runner
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	history  []pipeline.Message
	reply    string
	profiles []pipeline.Profile
	status   string
	cursor   int
	pending  bool
	ready    bool
}

// New creates a chat model. Each question runs with the given timeout.
func New(runner Runner, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about alumni and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		runner:   runner,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Ready. Up/Down browse profiles, Esc clears the conversation.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 + 1
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.render())
		return m, nil

	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		resp := pipeline.Assemble(msg.turn, m.runner.Filter())
		m.history = msg.turn.Messages
		m.reply = resp.Response
		m.profiles = resp.Profiles
		m.cursor = 0
		m.status = fmt.Sprintf("%d profile(s) for %q", len(resp.Profiles), msg.question)
		m.viewport.SetContent(m.render())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.input.SetValue("")
			m.status = "Thinking..."
			return m, m.ask(q)
		case "esc":
			m.history = nil
			m.reply = ""
			m.profiles = nil
			m.cursor = 0
			m.status = "Conversation cleared."
			m.viewport.SetContent(m.render())
			return m, nil
		case "down":
			if len(m.profiles) > 0 {
				m.cursor = (m.cursor + 1) % len(m.profiles)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if len(m.profiles) > 0 {
				m.cursor = (m.cursor - 1 + len(m.profiles)) % len(m.profiles)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs one turn off the update loop. The prior transcript is copied so
// the running turn never aliases model state.
func (m Model) ask(question string) tea.Cmd {
	prior := append([]pipeline.Message(nil), m.history...)
	runner, timeout := m.runner, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		turn, err := runner.Run(ctx, question, prior)
		return answerMsg{question: question, turn: turn, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Alumni Search")
	hint := mutedStyle.Render("Ask who worked where, studied what, or holds a role today.")
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + hint + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	var b strings.Builder
	if m.reply != "" {
		b.WriteString(renderReply(m.reply))
		b.WriteString("\n\n")
	}
	if len(m.profiles) == 0 {
		if m.reply == "" {
			b.WriteString("No results yet.")
		}
		return b.String()
	}

	p := m.profiles[m.cursor]
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Profile %d/%d", m.cursor+1, len(m.profiles))))
	b.WriteString("\n")
	b.WriteString(nameStyle.Render(p.Name))
	if p.Headline != nil {
		b.WriteString("\n")
		b.WriteString(*p.Headline)
	}
	if p.LinkedInURL != nil {
		b.WriteString("\n")
		b.WriteString(linkStyle.Render(*p.LinkedInURL))
	}
	b.WriteString("\n\n")
	b.WriteString(p.Summary)
	return b.String()
}

// renderReply shows a structured answer as a bullet list and anything else
// verbatim.
func renderReply(reply string) string {
	ans, err := composer.ParseAnswer(reply)
	if err != nil {
		return reply
	}
	if len(ans.Alumni) == 0 {
		return "No matching alumni."
	}
	lines := make([]string, len(ans.Alumni))
	for i, a := range ans.Alumni {
		lines[i] = "• " + nameStyle.Render(a.Name) + ": " + a.Summary
	}
	return strings.Join(lines, "\n")
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	nameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	linkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
