package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cli"
	glazedcmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	show := &ConfigShowCommand{
		CommandDescription: glazedcmds.NewCommandDescription(
			"show",
			glazedcmds.WithShort("Print the configuration after defaults and flag overrides"),
			glazedcmds.WithParents("config"),
		),
	}
	showCmd, err := cli.BuildCobraCommand(show, cli.WithParserConfig(cli.CobraParserConfig{AppName: "jobctl"}))
	if err != nil {
		return nil, err
	}
	// RunIntoWriter does not see the cobra command, so resolve the root
	// flags before it runs.
	showCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		opts, err := getRootOptions(cmd)
		if err != nil {
			return err
		}
		show.opts = &opts
		return nil
	}
	cmd.AddCommand(showCmd)
	return cmd, nil
}

type ConfigShowCommand struct {
	*glazedcmds.CommandDescription

	opts *rootOptions
}

var _ glazedcmds.WriterCommand = (*ConfigShowCommand)(nil)

func (c *ConfigShowCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	if c.opts == nil {
		return errors.New("configuration not resolved")
	}
	b, err := yaml.Marshal(c.opts.Config)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	_, _ = fmt.Fprintf(w, "# %s\n%s", c.opts.ConfigPath, b)
	return nil
}
