package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/protocol"
	"github.com/pkg/errors"
)

// RegisterJobEventDispatcher feeds stream envelopes into router. Publishes
// block until acked, so the router sees events one at a time and in order.
func RegisterJobEventDispatcher(bus *Bus, router *jobs.Router) {
	bus.AddHandler("jobctl-stream-dispatch", TopicJobEvents, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := ParseEnvelope(msg)
		if err != nil {
			return err
		}

		switch env.Type {
		case DomainTypeStreamStatus:
			var st StreamStatus
			if err := env.Decode(&st); err != nil {
				return err
			}
			router.HandleStatus(st.Status())
			if err := Publish(bus.Publisher, TopicUIMessages, UITypeStreamState, st); err != nil {
				return errors.Wrap(err, "publish stream state")
			}
			return nil
		case DomainTypeStreamFrame:
			var f protocol.Frame
			if err := env.Decode(&f); err != nil {
				return err
			}
			router.HandleFrame(f)
			return nil
		default:
			return nil
		}
	})
}
