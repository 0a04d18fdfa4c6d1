package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/protocol"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/stretchr/testify/require"
)

type collectingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *collectingSender) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collectingSender) snapshot() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tea.Msg(nil), c.msgs...)
}

func (c *collectingSender) logTexts() []string {
	var out []string
	for _, m := range c.snapshot() {
		if v, ok := m.(LogAppendMsg); ok {
			out = append(out, v.Entry.Text)
		}
	}
	return out
}

func startBus(t *testing.T, register func(bus *Bus)) *Bus {
	t.Helper()
	bus, err := NewInMemoryBus()
	require.NoError(t, err)
	register(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}
	return bus
}

func TestStreamEventsReachTheProgramInOrder(t *testing.T) {
	sender := &collectingSender{}
	bus := startBus(t, func(bus *Bus) {
		router := jobs.NewRouter(BusSinks{Pub: bus.Publisher})
		RegisterJobEventDispatcher(bus, router)
		RegisterUIForwarder(bus, sender)
	})

	require.NoError(t, Publish(bus.Publisher, TopicJobEvents, DomainTypeStreamStatus,
		NewStreamStatus(stream.Status{State: stream.StateOpen, At: time.Now()})))
	for _, line := range []string{"one", "two", "three"} {
		require.NoError(t, Publish(bus.Publisher, TopicJobEvents, DomainTypeStreamFrame,
			protocol.Frame{Event: protocol.StreamEventLogMessage, Data: line}))
	}
	require.NoError(t, Publish(bus.Publisher, TopicJobEvents, DomainTypeStreamFrame,
		protocol.Frame{Event: protocol.StreamEventProgress, Data: `{"type":"multi_start","filename":"t.txt","total_targets":2}`}))

	require.Eventually(t, func() bool {
		return len(sender.logTexts()) == 5
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, []string{
		"Log stream connected to server.",
		"one",
		"two",
		"three",
		"[File: t.txt] Batch started for 2 targets.",
	}, sender.logTexts())

	var sawState, sawGauge, sawFeedback bool
	for _, m := range sender.snapshot() {
		switch v := m.(type) {
		case StreamStateMsg:
			sawState = v.Status.State == stream.StateOpen
		case GaugeMsg:
			if v.Update.Visible != nil && *v.Update.Visible {
				sawGauge = true
			}
		case FeedbackMsg:
			if v.Update.Kind == jobs.KindBatch {
				require.Equal(t, "Processing t.txt (2 targets)...", v.Update.Feedback.Text)
				sawFeedback = true
			}
		}
	}
	require.True(t, sawState)
	require.True(t, sawGauge)
	require.True(t, sawFeedback)
}

type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []submit.Request
}

func (f *fakeSubmitter) Submit(_ context.Context, req submit.Request) submit.Result {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	req.Form.SetEnabled(false)
	req.Form.SetEnabled(true)
	req.Form.Clear()
	return submit.Result{Kind: req.Kind, Label: req.Target, Success: true, Message: "ok"}
}

func (f *fakeSubmitter) requests() []submit.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submit.Request(nil), f.reqs...)
}

func TestSubmitRunnerReadsBatchFile(t *testing.T) {
	sender := &collectingSender{}
	fake := &fakeSubmitter{}
	var runner *SubmitRunner
	bus := startBus(t, func(bus *Bus) {
		runner = &SubmitRunner{
			Submitter: fake,
			Pub:       bus.Publisher,
			Sinks:     BusSinks{Pub: bus.Publisher},
			ReadFile: func(path string) ([]byte, error) {
				require.Equal(t, "/tmp/targets.txt", path)
				return []byte("1\n2\n"), nil
			},
		}
		runner.Register(context.Background(), bus)
		RegisterUIForwarder(bus, sender)
	})

	require.NoError(t, PublishSubmit(bus.Publisher, SubmitRequest{Kind: jobs.KindBatch, FilePath: "/tmp/targets.txt"}))

	require.Eventually(t, func() bool {
		for _, m := range sender.snapshot() {
			if _, ok := m.(SubmitResultMsg); ok {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	runner.Wait()

	reqs := fake.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, []submit.Upload{{Name: "targets.txt", Data: []byte("1\n2\n")}}, reqs[0].Files)

	var states []FormState
	for _, m := range sender.snapshot() {
		if v, ok := m.(FormStateMsg); ok {
			states = append(states, v.State)
		}
	}
	require.Equal(t, []FormState{
		{Kind: jobs.KindBatch, Enabled: false},
		{Kind: jobs.KindBatch, Enabled: true},
		{Kind: jobs.KindBatch, Enabled: true, Cleared: true},
	}, states)
}

func TestSubmitRunnerReportsUnreadableFile(t *testing.T) {
	sender := &collectingSender{}
	fake := &fakeSubmitter{}
	var runner *SubmitRunner
	bus := startBus(t, func(bus *Bus) {
		runner = &SubmitRunner{
			Submitter: fake,
			Pub:       bus.Publisher,
			Sinks:     BusSinks{Pub: bus.Publisher},
			ReadFile: func(string) ([]byte, error) {
				return nil, context.DeadlineExceeded
			},
		}
		runner.Register(context.Background(), bus)
		RegisterUIForwarder(bus, sender)
	})

	require.NoError(t, PublishSubmit(bus.Publisher, SubmitRequest{Kind: jobs.KindBatch, FilePath: "missing.txt"}))

	require.Eventually(t, func() bool {
		return len(sender.logTexts()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	runner.Wait()

	require.Empty(t, fake.requests())
	require.Equal(t, "Submission error (batch): could not read missing.txt: context deadline exceeded", sender.logTexts()[0])
}

func TestPublishSubmitRequiresKind(t *testing.T) {
	bus, err := NewInMemoryBus()
	require.NoError(t, err)
	require.Error(t, PublishSubmit(bus.Publisher, SubmitRequest{Target: "1"}))
}
