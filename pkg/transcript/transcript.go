// Package transcript records push stream traffic as JSON lines and reads it
// back for replay.
//
// Each line is either a frame
//
//	{"at":"2026-01-02T15:04:05.123Z","event":"progress_update","data":"{...}"}
//
// or a connection state change
//
//	{"at":"2026-01-02T15:04:05Z","state":"open"}
//
// "at" may be any timestamp dateparse understands, or unix seconds or
// milliseconds, so hand-written transcripts work too.
package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-go-golems/jobctl/pkg/protocol"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxLineSize = 4 * 1024 * 1024

type Record struct {
	At    time.Time
	Event string
	Data  string
	ID    string
	State stream.State
	Error string
}

type line struct {
	At    any    `json:"at,omitempty"`
	Event string `json:"event,omitempty"`
	Data  string `json:"data,omitempty"`
	ID    string `json:"id,omitempty"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// FromMessage converts a stream message into a record stamped with at.
func FromMessage(msg stream.Message, at time.Time) Record {
	switch {
	case msg.Status != nil:
		r := Record{At: msg.Status.At, State: msg.Status.State}
		if r.At.IsZero() {
			r.At = at
		}
		if msg.Status.Err != nil {
			r.Error = msg.Status.Err.Error()
		}
		return r
	case msg.Frame != nil:
		return Record{At: at, Event: msg.Frame.Event, Data: msg.Frame.Data, ID: msg.Frame.ID}
	}
	return Record{At: at}
}

// Message turns the record back into a stream message.
func (r Record) Message() stream.Message {
	if r.State != "" {
		st := stream.Status{State: r.State, At: r.At}
		if r.Error != "" {
			st.Err = errors.New(r.Error)
		}
		return stream.Message{Status: &st}
	}
	return stream.Message{Frame: &protocol.Frame{Event: r.Event, Data: r.Data, ID: r.ID}}
}

type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	Now func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w), Now: time.Now}
}

func (w *Writer) Write(msg stream.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := FromMessage(msg, w.Now())
	l := line{
		At:    r.At.UTC().Format(time.RFC3339Nano),
		Event: r.Event,
		Data:  r.Data,
		ID:    r.ID,
		State: string(r.State),
		Error: r.Error,
	}
	if err := w.enc.Encode(l); err != nil {
		return errors.Wrap(err, "write transcript line")
	}
	return nil
}

// Tap records every message of in and forwards it unchanged. A failed write
// is logged and does not interrupt the stream.
func Tap(ctx context.Context, in <-chan stream.Message, w *Writer) <-chan stream.Message {
	out := make(chan stream.Message)
	go func() {
		defer close(out)
		for msg := range in {
			if err := w.Write(msg); err != nil {
				log.Warn().Err(err).Msg("could not record stream message")
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Read parses a whole transcript. Blank lines and lines starting with '#'
// are skipped. Records without a timestamp inherit the previous one.
func Read(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		out  []Record
		last time.Time
		n    int
	)
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return nil, errors.Wrapf(err, "transcript line %d", n)
		}
		if l.Event == "" && l.State == "" {
			return nil, errors.Errorf("transcript line %d: neither event nor state", n)
		}

		at, err := parseAt(l.At)
		if err != nil {
			return nil, errors.Wrapf(err, "transcript line %d", n)
		}
		if at.IsZero() {
			at = last
		}
		last = at

		out = append(out, Record{
			At:    at,
			Event: l.Event,
			Data:  l.Data,
			ID:    l.ID,
			State: stream.State(l.State),
			Error: l.Error,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read transcript")
	}
	return out, nil
}

func parseAt(v any) (time.Time, error) {
	switch vv := v.(type) {
	case nil:
		return time.Time{}, nil
	case float64:
		return fromUnix(int64(vv)), nil
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return time.Time{}, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(i), nil
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
		}
		return t.UTC(), nil
	}
	return time.Time{}, errors.Errorf("unsupported timestamp %v", v)
}

func fromUnix(i int64) time.Time {
	if i > 0 && i < 1_000_000_000_000 {
		return time.Unix(i, 0).UTC()
	}
	return time.UnixMilli(i).UTC()
}
