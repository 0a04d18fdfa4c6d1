package cmds

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-go-golems/jobctl/pkg/config"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "jobctl", SilenceErrors: true}
	AddRootFlags(root)
	require.NoError(t, AddCommands(root))
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newTestRoot(t)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootOptionsFromConfigAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server: http://jobs.internal:8080
endpoints:
  stream: /events
headers:
  X-Team: ops
stream:
  retry: 2s
  max_reconnects: 4
submit:
  timeout: 10s
`), 0o644))

	root := newTestRoot(t)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--config", cfgPath, "--timeout", "3s"}))

	opts, err := getRootOptions(root)
	require.NoError(t, err)
	require.Equal(t, cfgPath, opts.ConfigPath)
	require.Equal(t, "http://jobs.internal:8080", opts.Config.Server)
	require.Equal(t, config.DefaultSinglePath, opts.Config.Endpoints.Single)

	sub := opts.submitOptions()
	require.Equal(t, 3*time.Second, sub.Timeout)
	require.Equal(t, "ops", sub.Header.Get("X-Team"))

	sopts, err := opts.streamOptions()
	require.NoError(t, err)
	require.Equal(t, "http://jobs.internal:8080/events", sopts.URL)
	require.Equal(t, 2*time.Second, sopts.Retry)
	require.Equal(t, 4, sopts.MaxReconnects)
}

func TestRootOptionsRejectsMissingExplicitConfig(t *testing.T) {
	root := newTestRoot(t)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}))
	_, err := getRootOptions(root)
	require.Error(t, err)
}

func TestRootOptionsRejectsBadServer(t *testing.T) {
	root := newTestRoot(t)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--server", "not a url"}))
	_, err := getRootOptions(root)
	require.Error(t, err)
}

func TestLinePrinterSkipsRepeatedFeedbackAndHiddenGauge(t *testing.T) {
	var buf bytes.Buffer
	p := newLinePrinter(&buf)

	fb := jobs.Feedback{Text: "Processing t.txt (2 targets)...", Outcome: jobs.OutcomeNeutral}
	p.SetFeedback(jobs.KindBatch, fb)
	p.SetFeedback(jobs.KindBatch, fb)
	p.SetGaugePercent(50)
	p.AppendLog(jobs.LogEntry{
		At:    time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC),
		Level: jobs.LogLevelError,
		Text:  "Error in Background task: boom",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "[batch] ▶ Processing t.txt (2 targets)...", lines[0])
	require.Contains(t, lines[1], "09:30:00")
	require.Contains(t, lines[1], "ERROR")
	require.Contains(t, lines[1], "Error in Background task: boom")

	buf.Reset()
	p.SetGaugeVisible(true)
	p.SetGaugePercent(50)
	require.Equal(t, 1, strings.Count(buf.String(), "[batch]"))
	require.Contains(t, buf.String(), "50%")
}

func TestSubmitSingle(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web/crash-single", r.URL.Path)
		got = r.FormValue("target_number")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "submit", "single", " 5551234 ")
	require.NoError(t, err)
	require.Equal(t, "5551234", got)
	require.Contains(t, out, "Sending single request for 5551234...")
	require.Contains(t, out, "[single] ✓ Request for 5551234 sent. Waiting for stream updates...")
}

func TestSubmitSingleLogicalFailureSetsExitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"success":false,"error":"Target blocked"}`)
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "submit", "single", "1")
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.Contains(t, out, "Error submitting single job for 1: Target blocked")
}

func TestSubmitBatchReadsFile(t *testing.T) {
	var name, content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web/crash-multi", r.URL.Path)
		f, hdr, err := r.FormFile("target_file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		var b bytes.Buffer
		_, _ = b.ReadFrom(f)
		name, content = hdr.Filename, b.String()
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n"), 0o644))

	out, err := execute(t, "--server", srv.URL, "submit", "batch", path)
	require.NoError(t, err)
	require.Equal(t, "targets.txt", name)
	require.Equal(t, "1\n2\n", content)
	require.Contains(t, out, "File targets.txt uploaded. Waiting for stream updates...")
}

func TestSubmitFollowPrintsUntilSettled(t *testing.T) {
	submitted := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/stream-logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fl := w.(http.Flusher)
		fl.Flush()

		select {
		case target := <-submitted:
			_, _ = fmt.Fprintf(w, "event: log_message\ndata: \"working on %s\"\n\n", target)
			_, _ = fmt.Fprintf(w, "event: progress_update\ndata: {\"type\":\"single_result\",\"target\":%q,\"success\":true,\"message\":\"done\"}\n\n", target)
			fl.Flush()
		case <-r.Context().Done():
			return
		}
		<-r.Context().Done()
	})
	mux.HandleFunc("/web/crash-single", func(w http.ResponseWriter, r *http.Request) {
		submitted <- r.FormValue("target_number")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"success":true,"message":"queued"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "submit", "single", "42", "--follow")
	require.NoError(t, err)

	connected := strings.Index(out, "Log stream connected to server.")
	queued := strings.Index(out, "[single] ✓ queued")
	result := strings.Index(out, "[Target: 42] ✓ done")
	// The stream may deliver the result before the submission response.
	require.True(t, connected >= 0 && queued > connected && result > connected, out)
	require.Contains(t, out, "working on 42")
}

// followServer streams the frames returned by frames once a single job was
// submitted, with delay between them.
func followServer(t *testing.T, delay time.Duration, frames func(target string) []string) *httptest.Server {
	t.Helper()
	submitted := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/stream-logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fl := w.(http.Flusher)
		fl.Flush()

		var target string
		select {
		case target = <-submitted:
		case <-r.Context().Done():
			return
		}
		for i, f := range frames(target) {
			if i > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			_, _ = fmt.Fprintf(w, "event: progress_update\ndata: %s\n\n", f)
			fl.Flush()
		}
		<-r.Context().Done()
	})
	mux.HandleFunc("/web/crash-single", func(w http.ResponseWriter, r *http.Request) {
		submitted <- r.FormValue("target_number")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"success":true,"message":"queued"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitFollowIgnoresOtherJobsOfSameKind(t *testing.T) {
	srv := followServer(t, 200*time.Millisecond, func(target string) []string {
		return []string{
			`{"type":"single_result","target":"99","success":true,"message":"old job done"}`,
			fmt.Sprintf(`{"type":"single_result","target":%q,"success":true,"message":"done"}`, target),
		}
	})

	start := time.Now()
	out, err := execute(t, "--server", srv.URL, "submit", "single", "42", "--follow", "--follow-timeout", "5s")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	old := strings.Index(out, "[Target: 99] ✓ old job done")
	mine := strings.Index(out, "[Target: 42] ✓ done")
	require.True(t, old >= 0 && mine > old, out)
}

func TestSubmitFollowEndsOnTaskError(t *testing.T) {
	srv := followServer(t, 0, func(string) []string {
		return []string{`{"type":"task_error","taskName":"actual_single_crash_processing","error":"boom"}`}
	})

	out, err := execute(t, "--server", srv.URL, "submit", "single", "42", "--follow", "--follow-timeout", "5s")
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.Contains(t, out, "Error in actual_single_crash_processing: boom")
}

func TestWatchSummaryAfterStreamCloses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "retry: 10\n\n")
		_, _ = fmt.Fprint(w, "event: progress_update\ndata: {\"type\":\"single_result\",\"target\":\"7\",\"success\":true,\"message\":\"done\"}\n\n")
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "watch", "--summary")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())

	idx := strings.Index(out, "summary:")
	require.True(t, idx > 0, out)
	tail := out[idx:]
	require.Contains(t, tail, "[single] ✓ done")
	require.Contains(t, tail, "[batch] -")
	require.Contains(t, tail, "[Target: 7] ✓ done")
	require.Contains(t, tail, "Log stream closed; no further automatic reconnection.")
}

func TestReplayPrintsBoard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		`{"at":"2026-02-01T10:00:00Z","state":"open"}`,
		`{"at":"2026-02-01T10:00:01Z","event":"progress_update","data":"{\"type\":\"multi_start\",\"filename\":\"t.txt\",\"total_targets\":2}"}`,
		`{"at":"2026-02-01T10:00:02Z","event":"progress_update","data":"{\"type\":\"multi_progress_item_result\",\"filename\":\"t.txt\",\"current_index\":1,\"total_targets\":2,\"target_number\":\"1\",\"success\":true,\"message\":\"ok\",\"current_success_count\":1,\"current_failure_count\":0}"}`,
		`{"at":"2026-02-01T10:00:03Z","event":"progress_update","data":"{\"type\":\"multi_complete\",\"filename\":\"t.txt\",\"total\":2,\"success_count\":2,\"failure_count\":0}"}`,
	}, "\n")), 0o644))

	out, err := execute(t, "replay", path)
	require.NoError(t, err)
	require.Contains(t, out, "[single] -")
	require.Contains(t, out, "[batch] ✓ File t.txt processed. Success: 2, Fail: 0.")
	require.Contains(t, out, "100%")
	require.Contains(t, out, "log (4 entries):")
	require.Contains(t, out, "10:00:02")
	require.Contains(t, out, "[File: t.txt, Target: 1] ✓ ok")
}

func TestReplayJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"at":"2026-02-01T10:00:00Z","event":"progress_update","data":"{\"type\":\"single_status\",\"target\":\"7\",\"status_message\":\"dialing\"}"}`+"\n",
	), 0o644))

	out, err := execute(t, "replay", "--json", path)
	require.NoError(t, err)
	require.Contains(t, out, `"text": "dialing"`)
	require.Contains(t, out, `"outcome": "neutral"`)
}

func TestConfigShowWritesYAML(t *testing.T) {
	cfg := config.File{Server: "http://example.test:9000"}.WithDefaults()
	c := &ConfigShowCommand{opts: &rootOptions{ConfigPath: "/tmp/.jobctl.yaml", Config: cfg}}

	var buf bytes.Buffer
	require.NoError(t, c.RunIntoWriter(context.Background(), nil, &buf))
	require.Contains(t, buf.String(), "# /tmp/.jobctl.yaml")
	require.Contains(t, buf.String(), "server: http://example.test:9000")
	require.Contains(t, buf.String(), "single: /web/crash-single")
}
