package cmds

import (
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newSubmitCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newTuiCmd())

	configCmd, err := newConfigCmd()
	if err != nil {
		return err
	}
	root.AddCommand(configCmd)
	return nil
}
