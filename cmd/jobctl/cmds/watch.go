package cmds

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"time"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/metrics"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd() *cobra.Command {
	var record string
	var maxReconnects int
	var metricsAddr string
	var summary bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print log lines and job progress from the server's push stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			sopts, err := opts.streamOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-reconnects") {
				if maxReconnects < 0 {
					return errors.New("--max-reconnects must not be negative")
				}
				sopts.MaxReconnects = maxReconnects
			}
			cmd.SilenceUsage = true

			conn, err := stream.New(sopts)
			if err != nil {
				return err
			}
			var sinks jobs.Sinks = newLinePrinter(cmd.OutOrStdout())
			var board *jobs.Board
			if summary {
				board = jobs.NewBoard()
				sinks = jobs.Tee(sinks, board)
			}
			router, closeRouter, err := opts.newRouter(sinks)
			if err != nil {
				return err
			}
			defer closeRouter()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			eg, egCtx := errgroup.WithContext(ctx)

			msgs := conn.Stream(egCtx)
			if record != "" {
				f, err := os.Create(record)
				if err != nil {
					return errors.Wrap(err, "create transcript")
				}
				defer func() { _ = f.Close() }()
				msgs = transcript.Tap(egCtx, msgs, transcript.NewWriter(f))
			}

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           metricsMux(),
					ReadHeaderTimeout: 5 * time.Second,
				}
				eg.Go(func() error {
					log.Info().Str("addr", metricsAddr).Msg("metrics server started")
					if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
						return errors.Wrap(err, "metrics server")
					}
					return nil
				})
				eg.Go(func() error {
					<-egCtx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			eg.Go(func() error {
				// A closed stream ends the command, which also stops the
				// metrics server.
				defer cancel()
				err := jobs.Dispatch(egCtx, msgs, router)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})

			err = eg.Wait()
			if board != nil {
				_, _ = cmd.OutOrStdout().Write([]byte("\nsummary:\n"))
				printBoard(cmd.OutOrStdout(), board.Snapshot())
			}
			return err
		},
	}

	cmd.Flags().StringVar(&record, "record", "", "Write every stream message to FILE as JSON lines, for later replay")
	cmd.Flags().IntVar(&maxReconnects, "max-reconnects", 0, "Stop after this many consecutive failed reconnects (0 retries forever; defaults to stream.max_reconnects)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print the final feedback, gauge and log when the stream ends")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
