package submit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/metrics"
	"github.com/go-go-golems/jobctl/pkg/protocol"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSinglePath  = "/web/crash-single"
	DefaultBatchPath   = "/web/crash-multi"
	DefaultTargetField = "target_number"
	DefaultFileField   = "target_file"

	RequestIDHeader = "X-Request-ID"

	maxResponseBody = 1 << 20

	msgEmptyTarget   = "Target number cannot be empty."
	msgNoFile        = "Please select a .txt file."
	msgNetworkError  = "Network error or server unavailable."
	msgUnknownSingle = "An unknown error occurred."
	msgUnknownBatch  = "An unknown error occurred during upload."
)

type Failure string

const (
	FailureNone       Failure = ""
	FailureValidation Failure = "validation"
	FailureBusy       Failure = "busy"
	FailureLogical    Failure = "logical"
	FailureTransport  Failure = "transport"
)

// Outcome is the metrics label of a failure.
func (f Failure) Outcome() string {
	if f == FailureNone {
		return "success"
	}
	return string(f)
}

type Options struct {
	BaseURL string
	Client  *http.Client
	Header  http.Header
	// Timeout bounds a single submission request. Zero means no timeout.
	Timeout time.Duration

	SinglePath  string
	BatchPath   string
	TargetField string
	FileField   string
}

// Upload is one file attached to a batch submission.
type Upload struct {
	Name string
	Data []byte
}

type Request struct {
	Kind jobs.Kind
	// Form may be nil.
	Form   Form
	Target string
	Files  []Upload
}

// Result is the immediate outcome of a submission. Job progress arrives on
// the stream independently.
type Result struct {
	Kind      jobs.Kind
	Label     string
	RequestID string
	Success   bool
	Message   string
	Failure   Failure
}

type Submitter struct {
	opts  Options
	base  *url.URL
	sinks jobs.Sinks
	gate  gate

	Now func() time.Time
}

func New(opts Options, sinks jobs.Sinks) (*Submitter, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("missing server url")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse server url %q", opts.BaseURL)
	}
	if sinks == nil {
		return nil, errors.New("missing sinks")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.SinglePath == "" {
		opts.SinglePath = DefaultSinglePath
	}
	if opts.BatchPath == "" {
		opts.BatchPath = DefaultBatchPath
	}
	if opts.TargetField == "" {
		opts.TargetField = DefaultTargetField
	}
	if opts.FileField == "" {
		opts.FileField = DefaultFileField
	}
	return &Submitter{opts: opts, base: base, sinks: sinks, Now: time.Now}, nil
}

// Busy reports whether a submission of kind is outstanding.
func (s *Submitter) Busy(kind jobs.Kind) bool {
	return s.gate.Busy(kind)
}

// Submit validates the request, posts it and reports the immediate outcome
// to the sinks. It never returns an error: every failure is described by the
// Result and surfaced through the sinks.
func (s *Submitter) Submit(ctx context.Context, req Request) Result {
	form := req.Form
	if form == nil {
		form = NopForm
	}
	res := Result{Kind: req.Kind, Label: req.Label()}

	if msg, ok := validate(req); !ok {
		res.Failure = FailureValidation
		res.Message = msg
		s.sinks.SetFeedback(req.Kind, jobs.Feedback{Text: msg, Outcome: jobs.OutcomeError})
		metrics.ObserveSubmission(req.Kind.String(), res.Failure.Outcome())
		return res
	}

	if !s.gate.acquire(req.Kind) {
		res.Failure = FailureBusy
		res.Message = fmt.Sprintf("A %s submission is already in progress.", req.Kind)
		log.Warn().Str("kind", req.Kind.String()).Msg("submission rejected, kind busy")
		// Feedback still describes the job in flight, so only the log records
		// the rejection.
		s.log(jobs.LogLevelWarning, fmt.Sprintf("Submission rejected (%s): %s", req.Kind, res.Message))
		metrics.ObserveSubmission(req.Kind.String(), res.Failure.Outcome())
		return res
	}
	defer s.gate.release(req.Kind)

	form.SetEnabled(false)
	defer func() {
		form.SetEnabled(true)
		form.Clear()
	}()

	metrics.IncInFlight(req.Kind.String())
	defer metrics.DecInFlight(req.Kind.String())

	res.RequestID = uuid.NewString()
	logger := log.With().
		Str("kind", req.Kind.String()).
		Str("request_id", res.RequestID).
		Str("label", res.Label).
		Logger()

	switch req.Kind {
	case jobs.KindBatch:
		s.sinks.SetFeedback(req.Kind, jobs.Feedback{Text: fmt.Sprintf("Uploading %s...", res.Label), Outcome: jobs.OutcomeNeutral})
		s.log(jobs.LogLevelInfo, fmt.Sprintf("Uploading file %s for batch processing...", res.Label))
		s.sinks.SetGaugeVisible(false)
		s.sinks.SetGaugePercent(0)
	default:
		s.sinks.SetFeedback(req.Kind, jobs.Feedback{Text: fmt.Sprintf("Sending request for %s...", res.Label), Outcome: jobs.OutcomeNeutral})
		s.log(jobs.LogLevelInfo, fmt.Sprintf("Sending single request for %s...", res.Label))
	}

	logger.Debug().Msg("submitting job")
	resp, err := s.post(ctx, req, res.RequestID)
	if err != nil {
		logger.Warn().Err(err).Msg("submission failed")
		s.transportFailure(&res, fmt.Sprintf("%s (%v)", msgNetworkError, errors.Cause(err)))
	} else {
		s.settle(&res, resp)
		logger.Debug().Bool("success", res.Success).Str("failure", string(res.Failure)).Msg("submission settled")
	}

	metrics.ObserveSubmission(req.Kind.String(), res.Failure.Outcome())
	return res
}

type response struct {
	statusCode int
	status     string
	body       []byte
}

func (s *Submitter) post(ctx context.Context, req Request, requestID string) (*response, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	body, contentType, err := s.encode(req)
	if err != nil {
		return nil, err
	}

	path := s.opts.SinglePath
	if req.Kind == jobs.KindBatch {
		path = s.opts.BatchPath
	}
	endpoint := s.base.JoinPath(path).String()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range s.opts.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	httpResp, err := s.opts.Client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post submission")
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, "read submission response")
	}
	return &response{statusCode: httpResp.StatusCode, status: httpResp.Status, body: data}, nil
}

func (s *Submitter) encode(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	switch req.Kind {
	case jobs.KindBatch:
		for _, f := range req.Files {
			part, err := w.CreateFormFile(s.opts.FileField, f.Name)
			if err != nil {
				return nil, "", errors.Wrap(err, "create file part")
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", errors.Wrap(err, "write file part")
			}
		}
	default:
		if err := w.WriteField(s.opts.TargetField, strings.TrimSpace(req.Target)); err != nil {
			return nil, "", errors.Wrap(err, "write target field")
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

// settle classifies a received response.
func (s *Submitter) settle(res *Result, resp *response) {
	if resp.statusCode < 200 || resp.statusCode > 299 {
		msg := fmt.Sprintf("Server error: %s", resp.status)
		if body, err := protocol.DecodeSubmitResponse(resp.body); err == nil {
			if body.Error != "" {
				msg = body.Error
			} else if body.Message != "" {
				msg = body.Message
			}
		}
		s.transportFailure(res, msg)
		return
	}

	body, err := protocol.DecodeSubmitResponse(resp.body)
	if err != nil {
		s.transportFailure(res, "Invalid response from server: "+err.Error())
		return
	}

	if body.Success {
		res.Success = true
		res.Message = body.Message
		if res.Message == "" {
			res.Message = defaultSuccess(res.Kind, res.Label)
		}
		s.sinks.SetFeedback(res.Kind, jobs.Feedback{Text: res.Message, Outcome: jobs.OutcomeSuccess})
		return
	}

	res.Failure = FailureLogical
	res.Message = body.Error
	if res.Message == "" {
		res.Message = body.Message
	}
	if res.Message == "" {
		res.Message = defaultUnknown(res.Kind)
	}
	s.sinks.SetFeedback(res.Kind, jobs.Feedback{Text: res.Message, Outcome: jobs.OutcomeError})
	s.log(jobs.LogLevelError, fmt.Sprintf("Error submitting %s job for %s: %s", res.Kind, res.Label, res.Message))
}

func (s *Submitter) transportFailure(res *Result, msg string) {
	res.Success = false
	res.Failure = FailureTransport
	res.Message = msg
	s.sinks.SetFeedback(res.Kind, jobs.Feedback{Text: "Error: " + msg, Outcome: jobs.OutcomeError})
	s.log(jobs.LogLevelError, fmt.Sprintf("Submission error (%s): %s", res.Kind, msg))
}

func (s *Submitter) log(level jobs.LogLevel, text string) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	s.sinks.AppendLog(jobs.LogEntry{At: now(), Level: level, Text: text})
}

func validate(req Request) (string, bool) {
	switch req.Kind {
	case jobs.KindSingle:
		if strings.TrimSpace(req.Target) == "" {
			return msgEmptyTarget, false
		}
	case jobs.KindBatch:
		if len(req.Files) == 0 {
			return msgNoFile, false
		}
	default:
		return fmt.Sprintf("Unknown job kind %q.", req.Kind), false
	}
	return "", true
}

// Label names the job the way the server echoes it on the stream: the
// trimmed target for single jobs, the first file name for batch jobs.
func (req Request) Label() string {
	if req.Kind == jobs.KindBatch {
		if len(req.Files) == 0 {
			return ""
		}
		return req.Files[0].Name
	}
	return strings.TrimSpace(req.Target)
}

func defaultSuccess(kind jobs.Kind, label string) string {
	if kind == jobs.KindBatch {
		return fmt.Sprintf("File %s uploaded. Waiting for stream updates...", label)
	}
	return fmt.Sprintf("Request for %s sent. Waiting for stream updates...", label)
}

func defaultUnknown(kind jobs.Kind) string {
	if kind == jobs.KindBatch {
		return msgUnknownBatch
	}
	return msgUnknownSingle
}
