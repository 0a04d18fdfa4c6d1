package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/rs/zerolog/log"
)

// BusSinks implements jobs.Sinks by publishing UI envelopes. All writes of
// the router and the submitter go through the same topic, so the forwarder
// sees them in publish order.
type BusSinks struct {
	Pub message.Publisher
}

var _ jobs.Sinks = BusSinks{}

func (s BusSinks) SetFeedback(kind jobs.Kind, fb jobs.Feedback) {
	s.publish(UITypeFeedback, FeedbackUpdate{Kind: kind, Feedback: fb})
}

func (s BusSinks) AppendLog(entry jobs.LogEntry) {
	s.publish(UITypeLogAppend, entry)
}

func (s BusSinks) SetGaugePercent(percent float64) {
	s.publish(UITypeGauge, GaugeUpdate{Percent: &percent})
}

func (s BusSinks) SetGaugeVisible(visible bool) {
	s.publish(UITypeGauge, GaugeUpdate{Visible: &visible})
}

func (s BusSinks) publish(typ string, payload any) {
	if err := Publish(s.Pub, TopicUIMessages, typ, payload); err != nil {
		log.Error().Err(err).Str("type", typ).Msg("could not publish ui message")
	}
}

// busForm reports the enabled state of one kind's form to the UI.
type busForm struct {
	kind jobs.Kind
	pub  message.Publisher
}

func (f busForm) SetEnabled(enabled bool) {
	if err := Publish(f.pub, TopicUIMessages, UITypeFormState, FormState{Kind: f.kind, Enabled: enabled}); err != nil {
		log.Error().Err(err).Msg("could not publish form state")
	}
}

func (f busForm) Clear() {
	if err := Publish(f.pub, TopicUIMessages, UITypeFormState, FormState{Kind: f.kind, Enabled: true, Cleared: true}); err != nil {
		log.Error().Err(err).Msg("could not publish form clear")
	}
}
