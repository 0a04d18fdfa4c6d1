package stream

import (
	"context"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-go-golems/jobctl/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultRetry = 3 * time.Second

// ErrFailed marks a connection the server refused for good (wrong status or
// content type). No reconnect follows it.
var ErrFailed = errors.New("event stream failed")

// ErrReconnectsExhausted is reported when MaxReconnects consecutive attempts
// failed.
var ErrReconnectsExhausted = errors.New("event stream reconnects exhausted")

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateError      State = "error"
	StateClosed     State = "closed"
)

type Status struct {
	State   State
	At      time.Time
	Attempt int
	Err     error
}

// Message is either a connection status transition or a received frame.
type Message struct {
	Status *Status
	Frame  *protocol.Frame
}

type Options struct {
	URL    string
	Client *http.Client
	Header http.Header

	// Retry is the initial reconnection delay; the server may override it.
	Retry time.Duration
	// MaxReconnects bounds consecutive failed reconnects. Zero means retry
	// forever, like a browser EventSource.
	MaxReconnects int
}

type Conn struct {
	opts  Options
	retry time.Duration

	lastEventID string
	streamed    bool
}

func New(opts Options) (*Conn, error) {
	if opts.URL == "" {
		return nil, errors.New("missing stream url")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Retry <= 0 {
		opts.Retry = DefaultRetry
	}
	if opts.MaxReconnects < 0 {
		opts.MaxReconnects = 0
	}
	return &Conn{opts: opts, retry: opts.Retry}, nil
}

// Stream connects and returns the message sequence. The channel is
// unbuffered: the reader blocks until the consumer has taken the previous
// message. It is closed after a Closed status or when ctx is canceled.
// Stream may only be called once.
func (c *Conn) Stream(ctx context.Context) <-chan Message {
	out := make(chan Message)
	if c.streamed {
		close(out)
		return out
	}
	c.streamed = true
	go c.run(ctx, out)
	return out
}

func (c *Conn) run(ctx context.Context, out chan<- Message) {
	defer close(out)

	if !c.emit(ctx, out, Status{State: StateConnecting}) {
		return
	}

	failures := 0
	for {
		body, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrFailed) {
				c.emit(ctx, out, Status{State: StateClosed, Err: err})
				return
			}
			failures++
			if !c.emitFailure(ctx, out, failures, err) || !c.wait(ctx) {
				return
			}
			continue
		}

		failures = 0
		if !c.emit(ctx, out, Status{State: StateOpen}) {
			_ = body.Close()
			return
		}

		err = c.pump(ctx, body, out)
		_ = body.Close()
		if ctx.Err() != nil {
			return
		}
		failures++
		if !c.emitFailure(ctx, out, failures, err) || !c.wait(ctx) {
			return
		}
	}
}

// wait sleeps for the current retry delay, counted from the failure so a
// long-lived connection does not earn an immediate reconnect.
func (c *Conn) wait(ctx context.Context) bool {
	t := time.NewTimer(c.retry)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitFailure reports an Error status and decides whether another attempt
// follows. It returns false once the stream is closed.
func (c *Conn) emitFailure(ctx context.Context, out chan<- Message, failures int, err error) bool {
	log.Debug().Err(err).Int("attempt", failures).Str("url", c.opts.URL).Msg("event stream error")
	if !c.emit(ctx, out, Status{State: StateError, Attempt: failures, Err: err}) {
		return false
	}
	if c.opts.MaxReconnects > 0 && failures > c.opts.MaxReconnects {
		c.emit(ctx, out, Status{State: StateClosed, Attempt: failures, Err: ErrReconnectsExhausted})
		return false
	}
	return true
}

func (c *Conn) connect(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrFailed, "build request: %v", err)
	}
	for k, vs := range c.opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}

	resp, err := c.opts.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "connect event stream")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.Wrapf(ErrFailed, "unexpected status %s", resp.Status)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		_ = resp.Body.Close()
		return nil, errors.Wrapf(ErrFailed, "unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	return resp.Body, nil
}

func (c *Conn) pump(ctx context.Context, body io.Reader, out chan<- Message) error {
	dec := NewDecoder(body)
	for {
		f, err := dec.Next()
		c.lastEventID = dec.LastEventID()
		if retry, ok := dec.Retry(); ok {
			c.retry = retry
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("event stream closed by server")
			}
			return errors.Wrap(err, "read event stream")
		}
		frame := f
		select {
		case out <- Message{Frame: &frame}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) emit(ctx context.Context, out chan<- Message, st Status) bool {
	if st.At.IsZero() {
		st.At = time.Now()
	}
	select {
	case out <- Message{Status: &st}:
		return true
	case <-ctx.Done():
		return false
	}
}
