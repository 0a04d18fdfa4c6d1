package jobs

// FeedbackSink holds the latest status line per job kind.
type FeedbackSink interface {
	SetFeedback(kind Kind, fb Feedback)
}

// LogSink is append-only.
type LogSink interface {
	AppendLog(entry LogEntry)
}

// GaugeSink receives batch progress updates. Value and visibility change
// independently: item events move the bar without showing it.
type GaugeSink interface {
	SetGaugePercent(percent float64)
	SetGaugeVisible(visible bool)
}

type Sinks interface {
	FeedbackSink
	LogSink
	GaugeSink
}

type teeSinks []Sinks

// Tee fans every write out to all sinks in order.
func Tee(sinks ...Sinks) Sinks {
	out := make(teeSinks, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t teeSinks) SetFeedback(kind Kind, fb Feedback) {
	for _, s := range t {
		s.SetFeedback(kind, fb)
	}
}

func (t teeSinks) AppendLog(entry LogEntry) {
	for _, s := range t {
		s.AppendLog(entry)
	}
}

func (t teeSinks) SetGaugePercent(percent float64) {
	for _, s := range t {
		s.SetGaugePercent(percent)
	}
}

func (t teeSinks) SetGaugeVisible(visible bool) {
	for _, s := range t {
		s.SetGaugeVisible(visible)
	}
}
