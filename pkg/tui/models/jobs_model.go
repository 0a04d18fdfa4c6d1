package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/tui"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
	"github.com/go-go-golems/jobctl/pkg/tui/widgets"
)

const recentLogLines = 5

type jobForm struct {
	kind     jobs.Kind
	title    string
	action   string
	input    textinput.Model
	enabled  bool
	feedback jobs.Feedback
}

func newJobForm(kind jobs.Kind, title, action, placeholder string) jobForm {
	in := textinput.New()
	in.Placeholder = placeholder
	in.Prompt = "› "
	in.CharLimit = 512
	return jobForm{kind: kind, title: title, action: action, input: in, enabled: true}
}

// JobsModel shows the single target form, the batch form with its progress
// gauge and the tail of the log.
type JobsModel struct {
	single jobForm
	batch  jobForm
	focus  jobs.Kind

	gauge   jobs.Gauge
	recent  []jobs.LogEntry
	spinner spinner.Model

	width int
}

func NewJobsModel() JobsModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := JobsModel{
		single:  newJobForm(jobs.KindSingle, "Single target", "Submit", "target number"),
		batch:   newJobForm(jobs.KindBatch, "Batch from file", "Upload", "path/to/targets.txt"),
		focus:   jobs.KindSingle,
		spinner: sp,
	}
	m.single.input.Focus()
	return m
}

func (m JobsModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m JobsModel) WithWidth(w int) JobsModel {
	m.width = w
	inputWidth := w - 8
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.single.input.Width = inputWidth
	m.batch.input.Width = inputWidth
	return m
}

func (m JobsModel) Focus() jobs.Kind { return m.focus }

func (m JobsModel) Feedback(kind jobs.Kind) jobs.Feedback { return m.form(kind).feedback }

func (m JobsModel) Enabled(kind jobs.Kind) bool { return m.form(kind).enabled }

func (m JobsModel) Gauge() jobs.Gauge { return m.gauge }

func (m JobsModel) Update(msg tea.Msg) (JobsModel, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		switch v.String() {
		case "tab", "shift+tab", "up", "down":
			return m.toggleFocus(), nil
		case "enter":
			return m, m.submit()
		}
		f := m.form(m.focus)
		if !f.enabled {
			return m, nil
		}
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(v)
		return m.setForm(f), cmd

	case tui.FeedbackMsg:
		f := m.form(v.Update.Kind)
		f.feedback = v.Update.Feedback
		return m.setForm(f), nil

	case tui.GaugeMsg:
		if v.Update.Percent != nil {
			m.gauge.Percent = *v.Update.Percent
		}
		if v.Update.Visible != nil {
			m.gauge.Visible = *v.Update.Visible
		}
		return m, nil

	case tui.FormStateMsg:
		f := m.form(v.State.Kind)
		f.enabled = v.State.Enabled
		if v.State.Cleared {
			f.input.Reset()
		}
		return m.setForm(f), nil

	case tui.LogAppendMsg:
		m.recent = append(m.recent, v.Entry)
		if len(m.recent) > recentLogLines {
			m.recent = m.recent[len(m.recent)-recentLogLines:]
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(v)
		return m, cmd
	}
	return m, nil
}

func (m JobsModel) submit() tea.Cmd {
	f := m.form(m.focus)
	if !f.enabled {
		return nil
	}
	req := tui.SubmitRequest{Kind: f.kind}
	value := strings.TrimSpace(f.input.Value())
	if f.kind == jobs.KindBatch {
		req.FilePath = value
	} else {
		req.Target = value
	}
	return func() tea.Msg { return tui.SubmitRequestMsg{Request: req} }
}

func (m JobsModel) toggleFocus() JobsModel {
	if m.focus == jobs.KindSingle {
		m.focus = jobs.KindBatch
		m.single.input.Blur()
		m.batch.input.Focus()
	} else {
		m.focus = jobs.KindSingle
		m.batch.input.Blur()
		m.single.input.Focus()
	}
	return m
}

func (m JobsModel) form(kind jobs.Kind) jobForm {
	if kind == jobs.KindBatch {
		return m.batch
	}
	return m.single
}

func (m JobsModel) setForm(f jobForm) JobsModel {
	switch f.kind {
	case jobs.KindBatch:
		m.batch = f
	case jobs.KindSingle:
		m.single = f
	}
	return m
}

func (m JobsModel) View() string {
	theme := styles.DefaultTheme()
	width := m.width
	if width <= 0 {
		width = 80
	}

	singleBox := m.renderForm(theme, m.single, width, "")

	gauge := ""
	if m.gauge.Visible {
		gauge = widgets.NewProgressBar(m.gauge.Percent).
			WithWidth(width - 12).
			WithStyle(lipgloss.NewStyle().Foreground(theme.Primary)).
			Render()
	}
	batchBox := m.renderForm(theme, m.batch, width, gauge)

	var recent []string
	for _, e := range m.recent {
		recent = append(recent, renderLogLine(theme, e))
	}
	if len(recent) == 0 {
		recent = append(recent, theme.TitleMuted.Render("(no log entries yet)"))
	}
	recentBox := widgets.NewBox("Recent log").
		WithTitleRight("[ctrl+t] full log").
		WithContent(strings.Join(recent, "\n")).
		WithSize(width, 0).
		Render()

	return lipgloss.JoinVertical(lipgloss.Left, singleBox, batchBox, recentBox)
}

func (m JobsModel) renderForm(theme styles.Theme, f jobForm, width int, extra string) string {
	var status string
	if f.enabled {
		status = theme.KeybindKey.Render("[enter]") + theme.Keybind.Render(" "+f.action)
	} else {
		status = theme.Disabled.Render(m.spinner.View() + " Processing...")
	}

	lines := []string{f.input.View(), status}
	if f.feedback.Text != "" {
		style := theme.Outcome(f.feedback.Outcome)
		lines = append(lines, style.Render(fmt.Sprintf("%s %s", styles.OutcomeIcon(f.feedback.Outcome), f.feedback.Text)))
	}
	if extra != "" {
		lines = append(lines, extra)
	}

	return widgets.NewBox(f.title).
		WithFocus(m.focus == f.kind).
		WithContent(strings.Join(lines, "\n")).
		WithSize(width, 0).
		Render()
}
