package stream

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/jobctl/pkg/protocol"
)

const maxLineBytes = 1 << 20

// Decoder reads text/event-stream frames. Field handling follows the
// EventSource rules: data lines are joined with "\n", an empty line
// dispatches, a trailing incomplete event at EOF is dropped.
type Decoder struct {
	scanner *bufio.Scanner

	eventType string
	data      strings.Builder
	hasData   bool
	idBuffer  string

	lastEventID string
	retry       time.Duration
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineBytes)
	s.Split(scanLines)
	return &Decoder{scanner: s}
}

// Next returns the next dispatched frame, or io.EOF once the body ends.
func (d *Decoder) Next() (protocol.Frame, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if f, ok := d.dispatch(); ok {
				return f, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = strings.TrimPrefix(value, " ")
		}
		d.processField(field, value)
	}
	if err := d.scanner.Err(); err != nil {
		return protocol.Frame{}, err
	}
	return protocol.Frame{}, io.EOF
}

// LastEventID is the id to send as Last-Event-ID on reconnect.
func (d *Decoder) LastEventID() string { return d.lastEventID }

// Retry reports a server-requested reconnection delay, if any.
func (d *Decoder) Retry() (time.Duration, bool) { return d.retry, d.retry > 0 }

func (d *Decoder) processField(field, value string) {
	switch field {
	case "event":
		d.eventType = value
	case "data":
		d.data.WriteString(value)
		d.data.WriteByte('\n')
		d.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.idBuffer = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 && isDigits(value) {
			d.retry = time.Duration(ms) * time.Millisecond
		}
	}
}

func (d *Decoder) dispatch() (protocol.Frame, bool) {
	d.lastEventID = d.idBuffer
	if !d.hasData {
		d.eventType = ""
		return protocol.Frame{}, false
	}
	data := strings.TrimSuffix(d.data.String(), "\n")
	name := d.eventType
	if name == "" {
		name = protocol.StreamEventDefaultName
	}
	d.data.Reset()
	d.hasData = false
	d.eventType = ""
	return protocol.Frame{Event: name, Data: data, ID: d.lastEventID}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// scanLines splits on CRLF, LF or a lone CR.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
