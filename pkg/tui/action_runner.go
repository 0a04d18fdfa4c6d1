package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Submitter is the part of submit.Submitter the runner needs.
type Submitter interface {
	Submit(ctx context.Context, req submit.Request) submit.Result
}

// SubmitRunner turns submit requests into submissions. Each submission runs
// in its own goroutine so a slow single job does not hold back a batch
// upload; the submitter rejects a second job of the same kind.
type SubmitRunner struct {
	Submitter Submitter
	Pub       message.Publisher
	Sinks     jobs.Sinks

	// ReadFile defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	wg sync.WaitGroup
}

func (r *SubmitRunner) Register(ctx context.Context, bus *Bus) {
	bus.AddHandler("jobctl-ui-submit", TopicUIActions, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := ParseEnvelope(msg)
		if err != nil {
			log.Warn().Err(err).Msg("bad action envelope")
			return nil
		}
		if env.Type != UITypeSubmitRequest {
			return nil
		}
		var req SubmitRequest
		if err := env.Decode(&req); err != nil {
			log.Warn().Err(err).Msg("bad submit request")
			return nil
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.run(ctx, req)
		}()
		return nil
	})
}

// Wait blocks until all started submissions returned.
func (r *SubmitRunner) Wait() {
	r.wg.Wait()
}

func (r *SubmitRunner) run(ctx context.Context, req SubmitRequest) {
	sreq := submit.Request{
		Kind:   req.Kind,
		Form:   busForm{kind: req.Kind, pub: r.Pub},
		Target: req.Target,
	}

	if req.Kind == jobs.KindBatch && req.FilePath != "" {
		upload, err := r.load(req.FilePath)
		if err != nil {
			r.Sinks.SetFeedback(req.Kind, jobs.Feedback{Text: "Error: " + err.Error(), Outcome: jobs.OutcomeError})
			r.Sinks.AppendLog(jobs.LogEntry{
				At:    time.Now(),
				Level: jobs.LogLevelError,
				Text:  fmt.Sprintf("Submission error (%s): %s", req.Kind, err),
			})
			return
		}
		sreq.Files = []submit.Upload{upload}
	}

	res := r.Submitter.Submit(ctx, sreq)
	out := SubmitResult{
		Kind:      res.Kind,
		Label:     res.Label,
		RequestID: res.RequestID,
		Success:   res.Success,
		Failure:   string(res.Failure),
		Message:   res.Message,
	}
	if err := Publish(r.Pub, TopicUIMessages, UITypeSubmitResult, out); err != nil {
		log.Error().Err(err).Msg("could not publish submit result")
	}
}

func (r *SubmitRunner) load(path string) (submit.Upload, error) {
	read := r.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return submit.Upload{}, errors.Wrapf(err, "could not read %s", filepath.Base(path))
	}
	return submit.Upload{Name: filepath.Base(path), Data: data}, nil
}
