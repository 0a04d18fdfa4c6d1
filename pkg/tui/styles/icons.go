package styles

import (
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/stream"
)

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconRunning = "▶"
	IconPending = "○"
	IconSystem  = "●"
	IconBullet  = "•"
)

func LogLevelIcon(level jobs.LogLevel) string {
	switch level {
	case jobs.LogLevelError:
		return IconError
	case jobs.LogLevelWarning:
		return IconWarning
	case jobs.LogLevelSystem:
		return IconSystem
	case jobs.LogLevelInfo:
		return IconInfo
	default:
		return IconBullet
	}
}

func OutcomeIcon(o jobs.Outcome) string {
	switch o {
	case jobs.OutcomeSuccess:
		return IconSuccess
	case jobs.OutcomeError:
		return IconError
	default:
		return IconRunning
	}
}

func StreamStateIcon(s stream.State) string {
	switch s {
	case stream.StateOpen:
		return IconSystem
	case stream.StateError:
		return IconWarning
	case stream.StateClosed:
		return IconError
	default:
		return IconPending
	}
}
