// Package tui is the terminal page: a file field, a question field, and a
// scrollable answer pane with its cited sources.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

type field int

const (
	pathField field = iota
	questionField
)

// uploadResolvedMsg carries a finished upload attempt back to the update loop.
type uploadResolvedMsg struct {
	outcome session.UploadOutcome
}

// chatResolvedMsg carries a finished question back to the update loop.
type chatResolvedMsg struct {
	outcome session.QueryOutcome
}

type Model struct {
	uploads *session.UploadController
	queries *session.QueryController
	opts    render.Options
	backend string

	path     textinput.Model
	question textinput.Model
	answer   viewport.Model
	spinner  spinner.Model
	focus    field

	// notice is the last validation prompt; cleared by the next accepted action.
	notice string

	width  int
	height int
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the page around the two controllers. backend is shown in the
// title bar only.
func New(uploads *session.UploadController, queries *session.QueryController, opts render.Options, backend string) Model {
	path := textinput.New()
	path.Placeholder = "path/to/document.pdf"
	path.Prompt = "File: "
	path.Focus()

	question := textinput.New()
	question.Placeholder = "Ask about the document..."
	question.Prompt = "Ask:  "
	question.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		uploads:  uploads,
		queries:  queries,
		opts:     opts,
		backend:  backend,
		path:     path,
		question: question,
		answer:   viewport.New(78, 12),
		spinner:  sp,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.refreshAnswer()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.path.Width = max(msg.Width-10, 10)
		m.question.Width = max(msg.Width-10, 10)
		m.answer.Width = max(msg.Width-4, 20)
		m.answer.Height = max(msg.Height-12, 3)
		m.refreshAnswer()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil
		case "enter":
			if m.focus == pathField {
				return m.submitUpload()
			}
			return m.submitQuestion()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.answer, cmd = m.answer.Update(msg)
			return m, cmd
		}

	case uploadResolvedMsg:
		m.uploads.Resolve(msg.outcome)
		return m, nil

	case chatResolvedMsg:
		if m.queries.Resolve(msg.outcome) {
			m.refreshAnswer()
			m.answer.GotoTop()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == pathField {
		m.path, cmd = m.path.Update(msg)
	} else {
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == pathField {
		m.focus = questionField
		m.path.Blur()
		m.question.Focus()
		return
	}
	m.focus = pathField
	m.question.Blur()
	m.path.Focus()
}

// submitUpload selects the typed path, if any, and uploads the current
// selection. An empty field re-uploads the previous selection.
func (m Model) submitUpload() (tea.Model, tea.Cmd) {
	if p := strings.TrimSpace(m.path.Value()); p != "" {
		f, err := session.OpenPath(p)
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.uploads.SelectFile(f)
	}

	t, err := m.uploads.Begin()
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.notice = ""

	uploads, ctx := m.uploads, m.ctx
	return m, func() tea.Msg {
		return uploadResolvedMsg{outcome: uploads.Perform(ctx, t)}
	}
}

func (m Model) submitQuestion() (tea.Model, tea.Cmd) {
	m.queries.SetQuestion(m.question.Value())

	t, err := m.queries.Begin()
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.notice = ""
	m.refreshAnswer()

	queries, ctx := m.queries, m.ctx
	return m, func() tea.Msg {
		return chatResolvedMsg{outcome: queries.Perform(ctx, t)}
	}
}

func (m *Model) refreshAnswer() {
	st := m.queries.State()
	if st.Exchange == nil {
		m.answer.SetContent("")
		return
	}

	var b strings.Builder
	b.WriteString(st.Exchange.Answer)
	if lines := render.Citations(st.Exchange.Sources, m.opts); len(lines) > 0 {
		b.WriteString("\n\nSources:\n")
		b.WriteString(sourcesStyle.Render(render.Text(lines)))
	}
	m.answer.SetContent(b.String())
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("docchat") + labelStyle.Render(m.backend) + "\n\n")

	up := m.uploads.State()
	b.WriteString(m.path.View() + "\n")
	b.WriteString(m.statusLine(up.Phase, up.Status(), up.Pending) + "\n")
	if up.Result != nil {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%s: document %s, %d chunks", up.ResultFile, up.Result.DocumentID, up.Result.ChunksCount)) + "\n")
	}
	b.WriteString("\n")

	q := m.queries.State()
	b.WriteString(m.question.View() + "\n")
	b.WriteString(m.statusLine(q.Phase, q.Status(), q.Pending) + "\n")
	b.WriteString(answerBox.Render(m.answer.View()) + "\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(helpStyle.Render("Enter: submit • Tab: switch field • PgUp/PgDn: scroll • Esc: quit"))
	return b.String()
}

func (m Model) statusLine(phase session.Phase, status string, pending bool) string {
	switch {
	case phase == session.InProgress:
		return m.spinner.View() + " " + status
	case phase == session.Failed:
		line := errorStyle.Render(status)
		if pending {
			line += " " + m.spinner.View()
		}
		return line
	case pending:
		return okStyle.Render(status) + " " + m.spinner.View()
	default:
		return okStyle.Render(status)
	}
}
