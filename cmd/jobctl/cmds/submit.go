package cmds

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var ErrSubmissionFailed = errors.New("submission failed")

type followOptions struct {
	Follow  bool
	Timeout time.Duration
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit single target or batch jobs",
	}
	cmd.AddCommand(newSubmitSingleCmd())
	cmd.AddCommand(newSubmitBatchCmd())
	return cmd
}

func addFollowFlags(cmd *cobra.Command, fo *followOptions) {
	cmd.Flags().BoolVarP(&fo.Follow, "follow", "f", false, "Open the progress stream first and print updates until the job finishes")
	cmd.Flags().DurationVar(&fo.Timeout, "follow-timeout", 0, "Give up following after this long (0 waits forever)")
}

func newSubmitSingleCmd() *cobra.Command {
	var fo followOptions
	cmd := &cobra.Command{
		Use:   "single TARGET",
		Short: "Submit one target number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, submit.Request{Kind: jobs.KindSingle, Target: args[0]}, fo)
		},
	}
	addFollowFlags(cmd, &fo)
	return cmd
}

func newSubmitBatchCmd() *cobra.Command {
	var fo followOptions
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Upload a file of target numbers for batch processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read batch file")
			}
			req := submit.Request{
				Kind:  jobs.KindBatch,
				Files: []submit.Upload{{Name: filepath.Base(args[0]), Data: data}},
			}
			return runSubmit(cmd, req, fo)
		},
	}
	addFollowFlags(cmd, &fo)
	return cmd
}

func runSubmit(cmd *cobra.Command, req submit.Request, fo followOptions) error {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	out := newLinePrinter(cmd.OutOrStdout())
	sub, err := submit.New(opts.submitOptions(), out)
	if err != nil {
		return err
	}

	if !fo.Follow {
		return resultError(sub.Submit(cmd.Context(), req))
	}
	return followSubmit(cmd.Context(), opts, sub, out, req, fo)
}

// followSubmit waits for the stream to open before submitting so no progress
// event of the new job is missed, then prints until the job settles.
func followSubmit(ctx context.Context, opts rootOptions, sub *submit.Submitter, out jobs.Sinks, req submit.Request, fo followOptions) error {
	sopts, err := opts.streamOptions()
	if err != nil {
		return err
	}
	conn, err := stream.New(sopts)
	if err != nil {
		return err
	}
	router, closeRouter, err := opts.newRouter(out)
	if err != nil {
		return err
	}
	defer closeRouter()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opened := make(chan struct{})
	settled := make(chan struct{})
	var openOnce, settleOnce sync.Once
	var settledErr error
	want := req.Label()
	// Results for other jobs of the same kind may still be in flight, so
	// only the event naming this job ends the follow. A task_error carries
	// no job identity and ends it as a failure.
	router.OnSettled = func(kind jobs.Kind, label string) {
		if kind != req.Kind {
			return
		}
		switch label {
		case want:
			settleOnce.Do(func() { close(settled) })
		case "":
			settleOnce.Do(func() {
				settledErr = errors.Wrapf(ErrSubmissionFailed, "%s %s: background task error", req.Kind, want)
				close(settled)
			})
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	msgs := conn.Stream(egCtx)
	eg.Go(func() error {
		for msg := range msgs {
			router.Handle(msg)
			if msg.Status == nil {
				continue
			}
			switch msg.Status.State {
			case stream.StateOpen:
				openOnce.Do(func() { close(opened) })
			case stream.StateClosed:
				if egCtx.Err() != nil {
					return nil
				}
				err := msg.Status.Err
				if err == nil {
					err = errors.New("event stream closed")
				}
				return errors.Wrap(err, "event stream closed before the job finished")
			}
		}
		return nil
	})
	eg.Go(func() error {
		select {
		case <-opened:
		case <-egCtx.Done():
			return nil
		}

		if err := resultError(sub.Submit(egCtx, req)); err != nil {
			return err
		}

		var timeout <-chan time.Time
		if fo.Timeout > 0 {
			timer := time.NewTimer(fo.Timeout)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-settled:
			cancel()
			return settledErr
		case <-timeout:
			cancel()
			return errors.Errorf("%s job did not finish within %s", req.Kind, fo.Timeout)
		case <-egCtx.Done():
			return nil
		}
	})

	if err := eg.Wait(); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resultError maps a failed submission to an error so the exit status is
// non-zero. The reason was already printed through the sinks.
func resultError(res submit.Result) error {
	if res.Success {
		return nil
	}
	return errors.Wrapf(ErrSubmissionFailed, "%s %s", res.Kind, res.Failure)
}
