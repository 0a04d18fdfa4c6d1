package cmds

import (
	"context"
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/go-go-golems/jobctl/pkg/tui"
	"github.com/go-go-golems/jobctl/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newTuiCmd() *cobra.Command {
	var altScreen bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal UI: submit jobs and follow the progress stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			sopts, err := opts.streamOptions()
			if err != nil {
				return err
			}
			conn, err := stream.New(sopts)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			bus, err := tui.NewInMemoryBus()
			if err != nil {
				return err
			}
			sinks := tui.BusSinks{Pub: bus.Publisher}

			router, closeRouter, err := opts.newRouter(sinks)
			if err != nil {
				return err
			}
			defer closeRouter()
			tui.RegisterJobEventDispatcher(bus, router)

			sub, err := submit.New(opts.submitOptions(), sinks)
			if err != nil {
				return err
			}
			runner := &tui.SubmitRunner{Submitter: sub, Pub: bus.Publisher, Sinks: sinks}
			runner.Register(ctx, bus)

			model := models.NewRootModel(opts.Config.Server, func(req tui.SubmitRequest) error {
				return tui.PublishSubmit(bus.Publisher, req)
			})
			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(model, programOptions...)
			tui.RegisterUIForwarder(bus, program)

			streamRunner := &tui.StreamRunner{Conn: conn, Pub: bus.Publisher}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := bus.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				// Messages published before the router subscribed are dropped.
				select {
				case <-bus.Running():
				case <-egCtx.Done():
					return nil
				}
				return streamRunner.Run(egCtx)
			})
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				return err
			})

			err = eg.Wait()
			runner.Wait()
			if err != nil {
				return errors.Wrap(err, "tui")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	return cmd
}
