package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/pkg/errors"
)

// SubmitRequest asks the submission runner to submit one job. FilePath is
// read by the runner for batch jobs.
type SubmitRequest struct {
	Kind     jobs.Kind `json:"kind"`
	At       time.Time `json:"at"`
	Target   string    `json:"target,omitempty"`
	FilePath string    `json:"file_path,omitempty"`
}

func PublishSubmit(pub message.Publisher, req SubmitRequest) error {
	if req.Kind == "" {
		return errors.New("missing job kind")
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	return Publish(pub, TopicUIActions, UITypeSubmitRequest, req)
}
