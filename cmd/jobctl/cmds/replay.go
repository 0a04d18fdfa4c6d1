package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Feed a recorded stream transcript through the progress router and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open transcript")
			}
			defer func() { _ = f.Close() }()
			records, err := transcript.Read(f)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			board := jobs.NewBoard()
			router, closeRouter, err := opts.newRouter(board)
			if err != nil {
				return err
			}
			defer closeRouter()
			replay(router, records)

			state := board.Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(state), "encode board")
			}
			printBoard(cmd.OutOrStdout(), state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resulting board as JSON")
	return cmd
}

// replay stamps every log entry with the recorded time of the message that
// produced it.
func replay(router *jobs.Router, records []transcript.Record) {
	var current time.Time
	router.Now = func() time.Time { return current }
	for _, r := range records {
		current = r.At
		router.Handle(r.Message())
	}
}

func printBoard(w io.Writer, s jobs.State) {
	for _, kind := range []jobs.Kind{jobs.KindSingle, jobs.KindBatch} {
		fb := s.Feedback(kind)
		if fb.Text == "" {
			_, _ = fmt.Fprintf(w, "[%s] -\n", kind)
			continue
		}
		_, _ = fmt.Fprintln(w, formatFeedback(kind, fb))
	}
	if s.Gauge.Visible {
		_, _ = fmt.Fprintf(w, "[batch] %s\n", renderGauge(s.Gauge))
	}
	_, _ = fmt.Fprintf(w, "log (%d entries):\n", len(s.Log))
	for _, e := range s.Log {
		_, _ = fmt.Fprintf(w, "  %s\n", formatLogEntry(e))
	}
}
