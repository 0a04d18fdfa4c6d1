package jobs

import (
	"time"
)

type Kind string

const (
	KindSingle Kind = "single"
	KindBatch  Kind = "batch"
)

func (k Kind) String() string { return string(k) }

// Outcome is the tri-state shown next to a feedback message.
type Outcome string

const (
	OutcomeNeutral Outcome = "neutral"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// OutcomeFrom maps an optional success flag: nil is neutral.
func OutcomeFrom(success *bool) Outcome {
	if success == nil {
		return OutcomeNeutral
	}
	return OutcomeOf(*success)
}

func OutcomeOf(success bool) Outcome {
	if success {
		return OutcomeSuccess
	}
	return OutcomeError
}

type Feedback struct {
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSystem  LogLevel = "system"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

type LogEntry struct {
	At    time.Time `json:"at"`
	Level LogLevel  `json:"level"`
	Text  string    `json:"text"`
}

// Gauge is the batch progress indicator. Percent is stored unclamped;
// projections clamp when rendering.
type Gauge struct {
	Percent float64 `json:"percent"`
	Visible bool    `json:"visible"`
}

const (
	GlyphSuccess = "✓"
	GlyphFailure = "✗"
)

func glyph(success bool) string {
	if success {
		return GlyphSuccess
	}
	return GlyphFailure
}
