package protocol

// SSE event names emitted by the push stream endpoint.
const (
	StreamEventLogMessage  = "log_message"
	StreamEventProgress    = "progress_update"
	StreamEventConnected   = "connection_established"
	StreamEventKeepAlive   = "keep-alive"
	StreamEventDefaultName = "message"
)

type ProgressType string

const (
	ProgressSingleStatus    ProgressType = "single_status"
	ProgressSingleResult    ProgressType = "single_result"
	ProgressMultiStart      ProgressType = "multi_start"
	ProgressMultiItemStart  ProgressType = "multi_progress_item_start"
	ProgressMultiItemResult ProgressType = "multi_progress_item_result"
	ProgressMultiComplete   ProgressType = "multi_complete"
	ProgressMultiStatus     ProgressType = "multi_status"
	ProgressTaskError       ProgressType = "task_error"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// SubmitResponse is the JSON body of both submission endpoints.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProgressEvent is implemented by every progress_update variant.
type ProgressEvent interface {
	ProgressType() ProgressType
}

// SingleUpdate covers single_status and single_result. Success is nil while
// the job is still running.
type SingleUpdate struct {
	Type          ProgressType `json:"type"`
	Target        string       `json:"target"`
	Message       string       `json:"message,omitempty"`
	StatusMessage string       `json:"status_message,omitempty"`
	Success       *bool        `json:"success"`
}

func (e SingleUpdate) ProgressType() ProgressType { return e.Type }

// Text returns the message to show, falling back to status_message.
func (e SingleUpdate) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.StatusMessage
}

type MultiStart struct {
	Filename     string `json:"filename"`
	TotalTargets int    `json:"total_targets"`
}

func (MultiStart) ProgressType() ProgressType { return ProgressMultiStart }

type MultiItemStart struct {
	Filename     string `json:"filename"`
	CurrentIndex int    `json:"current_index"`
	TotalTargets int    `json:"total_targets"`
	TargetNumber string `json:"target_number"`
}

func (MultiItemStart) ProgressType() ProgressType { return ProgressMultiItemStart }

type MultiItemResult struct {
	Filename            string `json:"filename"`
	CurrentIndex        int    `json:"current_index"`
	TotalTargets        int    `json:"total_targets"`
	TargetNumber        string `json:"target_number"`
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	CurrentSuccessCount int    `json:"current_success_count"`
	CurrentFailureCount int    `json:"current_failure_count"`
}

func (MultiItemResult) ProgressType() ProgressType { return ProgressMultiItemResult }

type MultiComplete struct {
	Filename       string `json:"filename"`
	Total          int    `json:"total"`
	SuccessCount   int    `json:"success_count"`
	FailureCount   int    `json:"failure_count"`
	SummaryMessage string `json:"summary_message,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (MultiComplete) ProgressType() ProgressType { return ProgressMultiComplete }

type MultiStatus struct {
	Filename      string `json:"filename,omitempty"`
	StatusMessage string `json:"status_message"`
}

func (MultiStatus) ProgressType() ProgressType { return ProgressMultiStatus }

// TaskError reports a crashed background task. JobKind is optional; older
// servers only send a free-text TaskName.
type TaskError struct {
	TaskName string `json:"taskName,omitempty"`
	Error    string `json:"error,omitempty"`
	JobKind  string `json:"job_kind,omitempty"`
}

func (TaskError) ProgressType() ProgressType { return ProgressTaskError }

// Unknown is returned for discriminators this client does not know about.
type Unknown struct {
	Type ProgressType
}

func (e Unknown) ProgressType() ProgressType { return e.Type }
