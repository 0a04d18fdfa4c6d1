package jobs

import (
	"context"

	"github.com/go-go-golems/jobctl/pkg/stream"
)

// Dispatch consumes messages until the channel closes or ctx is canceled.
// Each message is fully handled before the next one is received.
func Dispatch(ctx context.Context, msgs <-chan stream.Message, r *Router) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.Handle(msg)
		}
	}
}
