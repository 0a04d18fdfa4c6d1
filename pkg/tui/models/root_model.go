package models

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/go-go-golems/jobctl/pkg/tui"
	"github.com/go-go-golems/jobctl/pkg/tui/styles"
	"github.com/go-go-golems/jobctl/pkg/tui/widgets"
)

type ViewID string

const (
	ViewJobs   ViewID = "jobs"
	ViewEvents ViewID = "log"
)

// SubmitFunc hands a submit request to the submission runner.
type SubmitFunc func(req tui.SubmitRequest) error

type RootModel struct {
	width  int
	height int

	active ViewID
	server string

	stream      tui.StreamStatus
	streamSince time.Time
	notice      string

	submitFn SubmitFunc

	jobs   JobsModel
	events EventLogModel
}

func NewRootModel(server string, submitFn SubmitFunc) RootModel {
	return RootModel{
		active:   ViewJobs,
		server:   server,
		stream:   tui.StreamStatus{State: stream.StateConnecting},
		submitFn: submitFn,
		jobs:     NewJobsModel(),
		events:   NewEventLogModel(),
	}
}

func (m RootModel) Init() tea.Cmd { return m.jobs.Init() }

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		m.jobs = m.jobs.WithWidth(v.Width)
		m.events = m.events.WithSize(v.Width, v.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch v.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+t":
			if m.active == ViewJobs {
				m.active = ViewEvents
			} else {
				m.active = ViewJobs
			}
			return m, nil
		case "q":
			if m.active == ViewEvents && !m.events.Searching() {
				return m, tea.Quit
			}
		}
		var cmd tea.Cmd
		if m.active == ViewEvents {
			m.events, cmd = m.events.Update(v)
		} else {
			m.jobs, cmd = m.jobs.Update(v)
		}
		return m, cmd

	case tui.SubmitRequestMsg:
		m.notice = ""
		if m.submitFn == nil {
			return m, nil
		}
		if err := m.submitFn(v.Request); err != nil {
			m.notice = fmt.Sprintf("could not submit: %v", err)
		}
		return m, nil

	case tui.SubmitResultMsg:
		if v.Result.Failure == string(submit.FailureBusy) {
			m.notice = v.Result.Message
		}
		return m, nil

	case tui.StreamStateMsg:
		if v.Status.State != m.stream.State {
			m.streamSince = v.Status.At
		}
		m.stream = v.Status
		return m, nil

	case tui.LogAppendMsg:
		m.events = m.events.Append(v.Entry)
		var cmd tea.Cmd
		m.jobs, cmd = m.jobs.Update(v)
		return m, cmd
	}

	var cmd tea.Cmd
	m.jobs, cmd = m.jobs.Update(msg)
	return m, cmd
}

func (m RootModel) View() string {
	theme := styles.DefaultTheme()

	status := string(m.stream.State)
	if m.stream.State == stream.StateError && m.stream.Attempt > 0 {
		status = fmt.Sprintf("%s, retry %d", status, m.stream.Attempt)
	}
	var since time.Duration
	if !m.streamSince.IsZero() && m.stream.State == stream.StateOpen {
		since = time.Since(m.streamSince)
	}
	header := widgets.NewHeader("jobctl").
		WithStatus(styles.StreamStateIcon(m.stream.State), fmt.Sprintf("%s %s", m.server, status), m.stream.State == stream.StateOpen).
		WithSince(since).
		WithRight(string(m.active)).
		WithWidth(m.width).
		Render()

	var body string
	var keys []widgets.Keybind
	switch m.active {
	case ViewEvents:
		body = m.events.View()
		keys = []widgets.Keybind{{Key: "ctrl+t", Label: "jobs"}, {Key: "/", Label: "filter"}, {Key: "q", Label: "quit"}}
	default:
		body = m.jobs.View()
		keys = []widgets.Keybind{{Key: "tab", Label: "switch form"}, {Key: "enter", Label: "submit"}, {Key: "ctrl+t", Label: "log"}, {Key: "ctrl+c", Label: "quit"}}
	}

	sections := []string{header, body}
	if m.notice != "" {
		sections = append(sections, theme.LogWarning.Render(m.notice))
	}
	sections = append(sections, widgets.NewFooter(keys).WithWidth(m.width).Render())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
