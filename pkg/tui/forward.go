package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/jobctl/pkg/jobs"
)

// Sender is implemented by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

func RegisterUIForwarder(bus *Bus, p Sender) {
	bus.AddHandler("jobctl-ui-forward", TopicUIMessages, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := ParseEnvelope(msg)
		if err != nil {
			return err
		}

		switch env.Type {
		case UITypeFeedback:
			var v FeedbackUpdate
			if err := env.Decode(&v); err != nil {
				return err
			}
			p.Send(FeedbackMsg{Update: v})
		case UITypeLogAppend:
			var v jobs.LogEntry
			if err := env.Decode(&v); err != nil {
				return err
			}
			p.Send(LogAppendMsg{Entry: v})
		case UITypeGauge:
			var v GaugeUpdate
			if err := env.Decode(&v); err != nil {
				return err
			}
			p.Send(GaugeMsg{Update: v})
		case UITypeFormState:
			var v FormState
			if err := env.Decode(&v); err != nil {
				return err
			}
			p.Send(FormStateMsg{State: v})
		case UITypeStreamState:
			var v StreamStatus
			if err := env.Decode(&v); err != nil {
				return err
			}
			p.Send(StreamStateMsg{Status: v})
		case UITypeSubmitResult:
			var v SubmitResult
			if err := env.Decode(&v); err != nil {
				return err
			}
			p.Send(SubmitResultMsg{Result: v})
		}
		return nil
	})
}
