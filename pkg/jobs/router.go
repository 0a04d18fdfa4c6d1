package jobs

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/go-go-golems/jobctl/pkg/metrics"
	"github.com/go-go-golems/jobctl/pkg/protocol"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/rs/zerolog/log"
)

const (
	logStreamOpen   = "Log stream connected to server."
	logStreamError  = "Log stream connection error; the client will reconnect automatically."
	logStreamClosed = "Log stream closed; no further automatic reconnection."
	logDecodeError  = "Error processing progress update from server."

	defaultTaskName = "Background task"
	defaultTaskErr  = "Unknown error"
)

// LineFilter may rewrite or drop a log line before it reaches the log sink.
type LineFilter interface {
	Apply(line string) (string, bool)
}

// Router turns stream messages into sink writes. It never returns errors:
// bad input becomes a log entry.
type Router struct {
	Sinks  Sinks
	Filter LineFilter
	Now    func() time.Time

	// OnSettled is called once a job reached a terminal state on the stream.
	// label is the target (single) or file name (batch) from the event; it is
	// empty for a task_error, which carries no job identity.
	OnSettled func(kind Kind, label string)
}

func NewRouter(sinks Sinks) *Router {
	return &Router{Sinks: sinks, Now: time.Now}
}

func (r *Router) Handle(msg stream.Message) {
	switch {
	case msg.Status != nil:
		r.HandleStatus(*msg.Status)
	case msg.Frame != nil:
		r.HandleFrame(*msg.Frame)
	}
}

func (r *Router) HandleStatus(st stream.Status) {
	metrics.ObserveStreamState(string(st.State))
	switch st.State {
	case stream.StateOpen:
		r.log(LogLevelSystem, logStreamOpen)
	case stream.StateError:
		r.log(LogLevelError, logStreamError)
	case stream.StateClosed:
		r.log(LogLevelWarning, logStreamClosed)
	case stream.StateConnecting:
	}
}

func (r *Router) HandleFrame(f protocol.Frame) {
	metrics.ObserveFrame(f.Event)
	switch f.Event {
	case protocol.StreamEventLogMessage:
		r.HandleLogMessage(f.Data)
	case protocol.StreamEventProgress:
		r.HandleProgress(f.Data)
	default:
		log.Trace().Str("event", f.Event).Msg("ignoring stream event")
	}
}

func (r *Router) HandleLogMessage(data string) {
	line := sanitize(protocol.DecodeLogMessage(data))
	if r.Filter != nil {
		out, keep := r.Filter.Apply(line)
		if !keep {
			return
		}
		line = sanitize(out)
	}
	r.log(LogLevelInfo, line)
}

func (r *Router) HandleProgress(data string) {
	ev, err := protocol.DecodeProgress([]byte(data))
	if err != nil {
		metrics.ObserveProgressDecodeError()
		log.Warn().Err(err).Str("data", data).Msg("could not decode progress update")
		r.log(LogLevelError, logDecodeError)
		return
	}
	r.Apply(ev)
}

// Apply reconciles one progress event into the sinks.
func (r *Router) Apply(ev protocol.ProgressEvent) {
	metrics.ObserveProgress(string(ev.ProgressType()))

	switch e := ev.(type) {
	case protocol.SingleUpdate:
		r.Sinks.SetFeedback(KindSingle, Feedback{Text: e.Text(), Outcome: OutcomeFrom(e.Success)})
		if e.Type == protocol.ProgressSingleResult {
			success := e.Success != nil && *e.Success
			r.log(LogLevelInfo, fmt.Sprintf("[Target: %s] %s %s", e.Target, glyph(success), e.Text()))
			r.settled(KindSingle, e.Target)
		}

	case protocol.MultiStart:
		r.Sinks.SetFeedback(KindBatch, Feedback{
			Text:    fmt.Sprintf("Processing %s (%d targets)...", e.Filename, e.TotalTargets),
			Outcome: OutcomeNeutral,
		})
		r.setGauge(0)
		r.Sinks.SetGaugeVisible(true)
		r.log(LogLevelInfo, fmt.Sprintf("[File: %s] Batch started for %d targets.", e.Filename, e.TotalTargets))

	case protocol.MultiItemStart:
		r.setGauge(percent(e.CurrentIndex, e.TotalTargets))
		r.Sinks.SetFeedback(KindBatch, Feedback{
			Text:    fmt.Sprintf("File %s: Processing %s (%d/%d)...", e.Filename, e.TargetNumber, e.CurrentIndex, e.TotalTargets),
			Outcome: OutcomeNeutral,
		})

	case protocol.MultiItemResult:
		r.setGauge(percent(e.CurrentIndex, e.TotalTargets))
		r.log(LogLevelInfo, fmt.Sprintf("[File: %s, Target: %s] %s %s", e.Filename, e.TargetNumber, glyph(e.Success), e.Message))
		r.Sinks.SetFeedback(KindBatch, Feedback{
			Text: fmt.Sprintf("File %s: %d success, %d fail of %d",
				e.Filename, e.CurrentSuccessCount, e.CurrentFailureCount, e.TotalTargets),
			Outcome: OutcomeNeutral,
		})

	case protocol.MultiComplete:
		r.setGauge(100)
		summary := e.SummaryMessage
		if summary == "" {
			summary = fmt.Sprintf("File %s processed. Success: %d, Fail: %d.", e.Filename, e.SuccessCount, e.FailureCount)
		}
		r.Sinks.SetFeedback(KindBatch, Feedback{
			Text:    summary,
			Outcome: OutcomeOf(e.SuccessCount > 0 && e.FailureCount == 0),
		})
		if e.SummaryMessage != "" {
			r.log(LogLevelInfo, e.SummaryMessage)
		} else {
			r.log(LogLevelInfo, fmt.Sprintf("Batch processing for %s complete.", e.Filename))
		}
		if e.Error != "" {
			r.log(LogLevelError, fmt.Sprintf("[File: %s] %s", e.Filename, e.Error))
		}
		r.settled(KindBatch, e.Filename)

	case protocol.MultiStatus:
		r.Sinks.SetFeedback(KindBatch, Feedback{Text: e.StatusMessage, Outcome: OutcomeNeutral})

	case protocol.TaskError:
		name := e.TaskName
		if name == "" {
			name = defaultTaskName
		}
		msg := e.Error
		if msg == "" {
			msg = defaultTaskErr
		}
		r.log(LogLevelError, fmt.Sprintf("Error in %s: %s", name, msg))
		kind, ok := inferKind(e.JobKind, name)
		if !ok {
			log.Debug().Str("task", name).Msg("task error matches no job kind")
			return
		}
		r.Sinks.SetFeedback(kind, Feedback{Text: "Error in task: " + msg, Outcome: OutcomeError})
		r.settled(kind, "")

	case protocol.Unknown:
		log.Debug().Str("type", string(e.Type)).Msg("ignoring unknown progress update")
	}
}

func (r *Router) setGauge(p float64) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return
	}
	r.Sinks.SetGaugePercent(p)
	metrics.SetBatchPercent(p)
}

func (r *Router) settled(kind Kind, label string) {
	if r.OnSettled != nil {
		r.OnSettled(kind, label)
	}
}

func (r *Router) log(level LogLevel, text string) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	r.Sinks.AppendLog(LogEntry{At: now(), Level: level, Text: text})
}

// percent is computed in floating point so a zero total gives a non-finite
// value, which setGauge drops.
func percent(index, total int) float64 {
	return float64(index) / float64(total) * 100
}

// inferKind prefers the explicit job_kind and falls back to matching the
// task name.
func inferKind(jobKind, taskName string) (Kind, bool) {
	switch jobKind {
	case "single":
		return KindSingle, true
	case "batch", "multi":
		return KindBatch, true
	}
	switch {
	case strings.Contains(taskName, "single"):
		return KindSingle, true
	case strings.Contains(taskName, "multi"):
		return KindBatch, true
	}
	return "", false
}

// sanitize drops terminal escape sequences and control characters other
// than tab and newline.
func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
