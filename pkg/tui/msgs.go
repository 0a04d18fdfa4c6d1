package tui

import "github.com/go-go-golems/jobctl/pkg/jobs"

type FeedbackMsg struct {
	Update FeedbackUpdate
}

type LogAppendMsg struct {
	Entry jobs.LogEntry
}

type GaugeMsg struct {
	Update GaugeUpdate
}

type FormStateMsg struct {
	State FormState
}

type StreamStateMsg struct {
	Status StreamStatus
}

type SubmitResultMsg struct {
	Result SubmitResult
}

// SubmitRequestMsg is emitted by the jobs view; the root model publishes it.
type SubmitRequestMsg struct {
	Request SubmitRequest
}
