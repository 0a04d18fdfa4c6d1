package submit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/stretchr/testify/require"
)

type recordingForm struct {
	mu       sync.Mutex
	disabled int
	enabled  int
	cleared  int
}

func (f *recordingForm) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if enabled {
		f.enabled++
	} else {
		f.disabled++
	}
}

func (f *recordingForm) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *recordingForm) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled, f.enabled, f.cleared
}

func newSubmitter(t *testing.T, url string) (*Submitter, *jobs.Board) {
	t.Helper()
	b := jobs.NewBoard()
	s, err := New(Options{BaseURL: url, Timeout: 5 * time.Second}, b)
	require.NoError(t, err)
	return s, b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSubmitSingleEmptyTargetSendsNothing(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	form := &recordingForm{}
	res := s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Form: form, Target: "   "})

	require.Equal(t, FailureValidation, res.Failure)
	require.False(t, res.Success)
	require.Equal(t, 0, hits)

	st := b.Snapshot()
	require.Equal(t, jobs.Feedback{Text: "Target number cannot be empty.", Outcome: jobs.OutcomeError}, st.Single)
	require.Empty(t, st.Log)

	d, e, c := form.counts()
	require.Equal(t, [3]int{0, 0, 0}, [3]int{d, e, c})
}

func TestSubmitBatchWithoutFile(t *testing.T) {
	s, b := newSubmitter(t, "http://127.0.0.1:1")
	res := s.Submit(context.Background(), Request{Kind: jobs.KindBatch})
	require.Equal(t, FailureValidation, res.Failure)
	require.Equal(t, jobs.Feedback{Text: "Please select a .txt file.", Outcome: jobs.OutcomeError}, b.Snapshot().Batch)
}

func TestSubmitSingleSuccess(t *testing.T) {
	var gotTarget, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, DefaultSinglePath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotTarget = r.FormValue(DefaultTargetField)
		gotRequestID = r.Header.Get(RequestIDHeader)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "queued"})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	form := &recordingForm{}
	res := s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Form: form, Target: "5551234"})

	require.True(t, res.Success)
	require.Equal(t, FailureNone, res.Failure)
	require.Equal(t, "queued", res.Message)
	require.Equal(t, "5551234", gotTarget)
	require.Equal(t, res.RequestID, gotRequestID)
	require.NotEmpty(t, gotRequestID)

	st := b.Snapshot()
	require.Equal(t, jobs.Feedback{Text: "queued", Outcome: jobs.OutcomeSuccess}, st.Single)
	require.Len(t, st.Log, 1)
	require.Equal(t, "Sending single request for 5551234...", st.Log[0].Text)

	d, e, c := form.counts()
	require.Equal(t, [3]int{1, 1, 1}, [3]int{d, e, c})
	require.False(t, s.Busy(jobs.KindSingle))
}

func TestSubmitSuccessDefaultMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Target: "77"})
	require.Equal(t, "Request for 77 sent. Waiting for stream updates...", b.Snapshot().Single.Text)
}

func TestSubmitBatchUploadsFile(t *testing.T) {
	var gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DefaultBatchPath, r.URL.Path)
		f, hdr, err := r.FormFile(DefaultFileField)
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		gotName, gotBody = hdr.Filename, string(data)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	b.SetGaugePercent(80)
	b.SetGaugeVisible(true)

	form := &recordingForm{}
	res := s.Submit(context.Background(), Request{
		Kind:  jobs.KindBatch,
		Form:  form,
		Files: []Upload{{Name: "targets.txt", Data: []byte("1\n2\n3\n")}},
	})

	require.True(t, res.Success)
	require.Equal(t, "targets.txt", gotName)
	require.Equal(t, "1\n2\n3\n", gotBody)

	st := b.Snapshot()
	require.Equal(t, jobs.Gauge{Percent: 0, Visible: false}, st.Gauge)
	require.Equal(t, "File targets.txt uploaded. Waiting for stream updates...", st.Batch.Text)
	require.Equal(t, "Uploading file targets.txt for batch processing...", st.Log[0].Text)

	d, e, c := form.counts()
	require.Equal(t, [3]int{1, 1, 1}, [3]int{d, e, c})
}

func TestSubmitLogicalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "invalid number"})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	form := &recordingForm{}
	res := s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Form: form, Target: "abc"})

	require.Equal(t, FailureLogical, res.Failure)
	st := b.Snapshot()
	require.Equal(t, jobs.Feedback{Text: "invalid number", Outcome: jobs.OutcomeError}, st.Single)
	require.Len(t, st.Log, 2)
	require.Equal(t, jobs.LogLevelError, st.Log[1].Level)
	require.Equal(t, "Error submitting single job for abc: invalid number", st.Log[1].Text)

	d, e, c := form.counts()
	require.Equal(t, [3]int{1, 1, 1}, [3]int{d, e, c})
}

func TestSubmitLogicalFailureWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Target: "1"})
	require.Equal(t, "An unknown error occurred.", b.Snapshot().Single.Text)
}

func TestSubmitServerErrorWithJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "bad csrf"})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	res := s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Target: "1"})

	require.Equal(t, FailureTransport, res.Failure)
	require.Equal(t, "bad csrf", res.Message)
	st := b.Snapshot()
	require.Equal(t, jobs.Feedback{Text: "Error: bad csrf", Outcome: jobs.OutcomeError}, st.Single)
	require.Equal(t, "Submission error (single): bad csrf", st.Log[len(st.Log)-1].Text)
}

func TestSubmitServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	form := &recordingForm{}
	res := s.Submit(context.Background(), Request{Kind: jobs.KindBatch, Form: form, Files: []Upload{{Name: "a.txt"}}})

	require.Equal(t, FailureTransport, res.Failure)
	require.Equal(t, "Server error: 500 Internal Server Error", res.Message)
	require.Equal(t, "Error: Server error: 500 Internal Server Error", b.Snapshot().Batch.Text)

	d, e, c := form.counts()
	require.Equal(t, [3]int{1, 1, 1}, [3]int{d, e, c})
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s, b := newSubmitter(t, url)
	form := &recordingForm{}
	res := s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Form: form, Target: "1"})

	require.Equal(t, FailureTransport, res.Failure)
	require.Contains(t, res.Message, "Network error or server unavailable.")
	st := b.Snapshot()
	require.Equal(t, jobs.OutcomeError, st.Single.Outcome)
	require.Contains(t, st.Single.Text, "Error: Network error or server unavailable.")

	d, e, c := form.counts()
	require.Equal(t, [3]int{1, 1, 1}, [3]int{d, e, c})
	require.False(t, s.Busy(jobs.KindSingle))
}

func TestSubmitRejectsSecondSubmissionOfSameKind(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		if r.URL.Path == DefaultSinglePath {
			close(entered)
			<-release
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	s, b := newSubmitter(t, srv.URL)
	first := &recordingForm{}
	done := make(chan Result, 1)
	go func() {
		done <- s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Form: first, Target: "1"})
	}()
	<-entered
	require.True(t, s.Busy(jobs.KindSingle))

	second := &recordingForm{}
	res := s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Form: second, Target: "2"})
	require.Equal(t, FailureBusy, res.Failure)
	d, e, c := second.counts()
	require.Equal(t, [3]int{0, 0, 0}, [3]int{d, e, c})

	snap := b.Snapshot()
	require.Equal(t, "Sending request for 1...", snap.Single.Text)
	last := snap.Log[len(snap.Log)-1]
	require.Equal(t, jobs.LogLevelWarning, last.Level)
	require.Equal(t, "Submission rejected (single): A single submission is already in progress.", last.Text)

	// the other kind is not blocked
	other := s.Submit(context.Background(), Request{Kind: jobs.KindBatch, Files: []Upload{{Name: "f.txt"}}})
	require.True(t, other.Success)

	close(release)
	require.True(t, (<-done).Success)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, hits[DefaultSinglePath])
	require.Equal(t, 1, hits[DefaultBatchPath])
}

func TestSubmitCustomPathsAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/run", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Token"))
		require.Equal(t, "42", r.FormValue("number"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	b := jobs.NewBoard()
	s, err := New(Options{
		BaseURL:     srv.URL,
		SinglePath:  "/api/run",
		TargetField: "number",
		Header:      http.Header{"X-Token": []string{"secret"}},
	}, b)
	require.NoError(t, err)
	require.True(t, s.Submit(context.Background(), Request{Kind: jobs.KindSingle, Target: "42"}).Success)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{}, jobs.NewBoard())
	require.Error(t, err)
}
