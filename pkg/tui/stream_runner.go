package tui

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StreamRunner publishes every message of a stream connection as a domain
// envelope.
type StreamRunner struct {
	Conn *stream.Conn
	Pub  message.Publisher
}

func (r *StreamRunner) Run(ctx context.Context) error {
	if r.Conn == nil {
		return errors.New("missing stream connection")
	}
	if r.Pub == nil {
		return errors.New("missing publisher")
	}

	for msg := range r.Conn.Stream(ctx) {
		var err error
		switch {
		case msg.Status != nil:
			err = Publish(r.Pub, TopicJobEvents, DomainTypeStreamStatus, NewStreamStatus(*msg.Status))
		case msg.Frame != nil:
			err = Publish(r.Pub, TopicJobEvents, DomainTypeStreamFrame, *msg.Frame)
		}
		if err != nil {
			log.Error().Err(err).Msg("could not publish stream message")
		}
	}
	log.Debug().Msg("stream runner finished")
	return nil
}
