package tui

const (
	TopicJobEvents  = "jobctl.events"
	TopicUIMessages = "jobctl.ui.msgs"
	TopicUIActions  = "jobctl.ui.actions"
)

// Domain envelopes, produced by the stream runner.
const (
	DomainTypeStreamStatus = "stream.status"
	DomainTypeStreamFrame  = "stream.frame"
)

// UI envelopes, consumed by the forwarder.
const (
	UITypeFeedback     = "tui.feedback.set"
	UITypeLogAppend    = "tui.log.append"
	UITypeGauge        = "tui.gauge.update"
	UITypeFormState    = "tui.form.state"
	UITypeStreamState  = "tui.stream.state"
	UITypeSubmitResult = "tui.submit.result"

	UITypeSubmitRequest = "tui.submit.request"
)
