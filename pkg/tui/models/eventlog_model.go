package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
	"github.com/go-go-golems/jobctl/pkg/tui/widgets"
)

// EventLogModel renders the log sink. Entries are never removed; the filter
// only hides lines.
type EventLogModel struct {
	entries []jobs.LogEntry

	width  int
	height int

	searching bool
	search    textinput.Model
	filter    string

	vp viewport.Model
}

func NewEventLogModel() EventLogModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200

	return EventLogModel{search: search, vp: viewport.New(0, 0)}
}

func (m EventLogModel) WithSize(width, height int) EventLogModel {
	m.width, m.height = width, height
	usable := height - 4
	if m.searching {
		usable--
	}
	if usable < 3 {
		usable = 3
	}
	m.vp.Width = max(0, width-2)
	m.vp.Height = usable
	return m.refresh(false)
}

// Searching reports whether the filter input has focus.
func (m EventLogModel) Searching() bool { return m.searching }

func (m EventLogModel) Len() int { return len(m.entries) }

func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.searching {
		switch v.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			return m.WithSize(m.width, m.height), nil
		case "enter":
			m.filter = strings.TrimSpace(m.search.Value())
			m.searching = false
			m.search.Blur()
			return m.WithSize(m.width, m.height).refresh(true), nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(v)
		return m, cmd
	}

	switch v.String() {
	case "/":
		m.searching = true
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return m.WithSize(m.width, m.height), textinput.Blink
	case "ctrl+l":
		m.filter = ""
		m.search.SetValue("")
		return m.refresh(true), nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(v)
	return m, cmd
}

func (m EventLogModel) Append(e jobs.LogEntry) EventLogModel {
	m.entries = append(m.entries, e)
	return m.refresh(m.vp.AtBottom() || len(m.entries) == 1)
}

func (m EventLogModel) View() string {
	theme := styles.DefaultTheme()

	hint := "[/] filter  [↑/↓] scroll"
	if m.filter != "" {
		hint = fmt.Sprintf("filter=%q  %s", m.filter, hint)
	}

	var sections []string
	if m.searching {
		sections = append(sections, m.search.View())
	}

	box := widgets.NewBox(fmt.Sprintf("Log (%d)", len(m.entries))).WithTitleRight(hint)
	if len(m.entries) == 0 {
		box = box.WithContent(theme.TitleMuted.Render("(waiting for the log stream)")).WithSize(m.width, 5)
	} else {
		box = box.WithContent(m.vp.View()).WithSize(m.width, m.vp.Height+3)
	}
	sections = append(sections, box.Render())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m EventLogModel) refresh(gotoBottom bool) EventLogModel {
	theme := styles.DefaultTheme()

	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if m.filter != "" && !strings.Contains(e.Text, m.filter) {
			continue
		}
		lines = append(lines, renderLogLine(theme, e))
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if gotoBottom {
		m.vp.GotoBottom()
	}
	return m
}

func renderLogLine(theme styles.Theme, e jobs.LogEntry) string {
	style := theme.LogLevel(e.Level)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		style.Render(styles.LogLevelIcon(e.Level)),
		" ",
		theme.TitleMuted.Render(e.At.Format("15:04:05")),
		"  ",
		style.Render(e.Text),
	)
}
