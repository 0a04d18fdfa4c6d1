package tui

import (
	"time"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/pkg/errors"
)

// StreamStatus is the serializable form of stream.Status.
type StreamStatus struct {
	State   stream.State `json:"state"`
	At      time.Time    `json:"at"`
	Attempt int          `json:"attempt,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func NewStreamStatus(st stream.Status) StreamStatus {
	out := StreamStatus{State: st.State, At: st.At, Attempt: st.Attempt}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}
	return out
}

func (s StreamStatus) Status() stream.Status {
	st := stream.Status{State: s.State, At: s.At, Attempt: s.Attempt}
	if s.Error != "" {
		st.Err = errors.New(s.Error)
	}
	return st
}

type FeedbackUpdate struct {
	Kind     jobs.Kind     `json:"kind"`
	Feedback jobs.Feedback `json:"feedback"`
}

// GaugeUpdate carries either a new percentage or a visibility change.
type GaugeUpdate struct {
	Percent *float64 `json:"percent,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
}

type FormState struct {
	Kind    jobs.Kind `json:"kind"`
	Enabled bool      `json:"enabled"`
	Cleared bool      `json:"cleared,omitempty"`
}

type SubmitResult struct {
	Kind      jobs.Kind `json:"kind"`
	Label     string    `json:"label"`
	RequestID string    `json:"request_id,omitempty"`
	Success   bool      `json:"success"`
	Failure   string    `json:"failure,omitempty"`
	Message   string    `json:"message,omitempty"`
}
