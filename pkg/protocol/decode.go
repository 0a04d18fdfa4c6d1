package protocol

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

var ErrMissingType = errors.New("progress update without type")

// DecodeProgress parses a progress_update payload into its variant.
// Unknown discriminators decode to Unknown without error.
func DecodeProgress(data []byte) (ProgressEvent, error) {
	var envelope struct {
		Type ProgressType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(err, "unmarshal progress envelope")
	}
	if envelope.Type == "" {
		return nil, ErrMissingType
	}

	var (
		ev  ProgressEvent
		err error
	)
	switch envelope.Type {
	case ProgressSingleStatus, ProgressSingleResult:
		var v SingleUpdate
		err = json.Unmarshal(data, &v)
		ev = v
	case ProgressMultiStart:
		var v MultiStart
		err = json.Unmarshal(data, &v)
		ev = v
	case ProgressMultiItemStart:
		var v MultiItemStart
		err = json.Unmarshal(data, &v)
		ev = v
	case ProgressMultiItemResult:
		var v MultiItemResult
		err = json.Unmarshal(data, &v)
		ev = v
	case ProgressMultiComplete:
		var v MultiComplete
		err = json.Unmarshal(data, &v)
		ev = v
	case ProgressMultiStatus:
		var v MultiStatus
		err = json.Unmarshal(data, &v)
		ev = v
	case ProgressTaskError:
		var v TaskError
		err = json.Unmarshal(data, &v)
		ev = v
	default:
		return Unknown{Type: envelope.Type}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", envelope.Type)
	}
	return ev, nil
}

// DecodeLogMessage unwraps a JSON string payload. Anything that is not a JSON
// string is returned verbatim.
func DecodeLogMessage(data string) string {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, `"`) {
		return data
	}
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
		return data
	}
	return s
}

// DecodeSubmitResponse parses a submission endpoint body.
func DecodeSubmitResponse(body []byte) (SubmitResponse, error) {
	var resp SubmitResponse
	if len(strings.TrimSpace(string(body))) == 0 {
		return resp, errors.New("empty response body")
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, errors.Wrap(err, "unmarshal submit response")
	}
	return resp, nil
}
