package models

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/go-go-golems/jobctl/pkg/tui"
	"github.com/stretchr/testify/require"
)

func typeText(m JobsModel, s string) JobsModel {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestJobsModelSubmitSingle(t *testing.T) {
	m := NewJobsModel().WithWidth(80)
	m = typeText(m, "5551234")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(tui.SubmitRequestMsg)
	require.True(t, ok)
	require.Equal(t, jobs.KindSingle, msg.Request.Kind)
	require.Equal(t, "5551234", msg.Request.Target)
}

func TestJobsModelSubmitBatchAfterFocusSwitch(t *testing.T) {
	m := NewJobsModel()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, jobs.KindBatch, m.Focus())
	m = typeText(m, "targets.txt")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd().(tui.SubmitRequestMsg)
	require.Equal(t, jobs.KindBatch, msg.Request.Kind)
	require.Equal(t, "targets.txt", msg.Request.FilePath)
}

func TestJobsModelDisabledFormDoesNotSubmit(t *testing.T) {
	m := NewJobsModel()
	m, _ = m.Update(tui.FormStateMsg{State: tui.FormState{Kind: jobs.KindSingle, Enabled: false}})
	require.False(t, m.Enabled(jobs.KindSingle))
	require.True(t, m.Enabled(jobs.KindBatch))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Contains(t, m.View(), "Processing...")

	m = typeText(m, "12")
	m, _ = m.Update(tui.FormStateMsg{State: tui.FormState{Kind: jobs.KindSingle, Enabled: true, Cleared: true}})
	require.True(t, m.Enabled(jobs.KindSingle))
	require.Equal(t, "", m.single.input.Value())
}

func TestJobsModelFeedbackAndGauge(t *testing.T) {
	m := NewJobsModel().WithWidth(60)
	m, _ = m.Update(tui.FeedbackMsg{Update: tui.FeedbackUpdate{
		Kind:     jobs.KindBatch,
		Feedback: jobs.Feedback{Text: "File t.txt: 1 success, 0 fail of 3", Outcome: jobs.OutcomeNeutral},
	}})
	require.Equal(t, "File t.txt: 1 success, 0 fail of 3", m.Feedback(jobs.KindBatch).Text)
	require.Equal(t, jobs.Feedback{}, m.Feedback(jobs.KindSingle))

	pct := 33.3
	m, _ = m.Update(tui.GaugeMsg{Update: tui.GaugeUpdate{Percent: &pct}})
	require.False(t, m.Gauge().Visible)
	require.NotContains(t, m.View(), "33%")

	visible := true
	m, _ = m.Update(tui.GaugeMsg{Update: tui.GaugeUpdate{Visible: &visible}})
	require.Equal(t, jobs.Gauge{Percent: 33.3, Visible: true}, m.Gauge())
	require.Contains(t, m.View(), "33%")
}

func TestRootModelForwardsSubmitRequests(t *testing.T) {
	var got []tui.SubmitRequest
	root := NewRootModel("http://localhost:5000", func(req tui.SubmitRequest) error {
		got = append(got, req)
		return nil
	})

	next, _ := root.Update(tui.SubmitRequestMsg{Request: tui.SubmitRequest{Kind: jobs.KindSingle, Target: "1"}})
	require.Len(t, got, 1)

	next, _ = next.Update(tui.SubmitResultMsg{Result: tui.SubmitResult{
		Kind:    jobs.KindSingle,
		Failure: string(submit.FailureBusy),
		Message: "A single submission is already in progress.",
	}})
	require.Contains(t, next.View(), "already in progress")
}

func TestRootModelLogAndStreamState(t *testing.T) {
	root := NewRootModel("http://localhost:5000", nil)
	next, _ := root.Update(tui.StreamStateMsg{Status: tui.StreamStatus{State: stream.StateOpen}})
	next, _ = next.Update(tui.LogAppendMsg{Entry: jobs.LogEntry{Level: jobs.LogLevelSystem, Text: "Log stream connected to server."}})

	rm := next.(RootModel)
	require.Equal(t, stream.StateOpen, rm.stream.State)
	require.Equal(t, 1, rm.events.Len())
	require.Contains(t, rm.View(), "Log stream connected to server.")

	next, _ = rm.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	require.Equal(t, ViewEvents, next.(RootModel).active)
}
