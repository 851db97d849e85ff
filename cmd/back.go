package cmd

import (
	"context"

	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdprev"
	"github.com/spf13/cobra"
)

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Go back to the change printed before the last one",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, env *cmdprev.Env) error {
			return cmdprev.Back(ctx, env)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stack of visited changes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, env *cmdprev.Env) error {
			return env.Store.Clear()
		})
	},
}

func init() {
	rootCmd.AddCommand(backCmd)
	rootCmd.AddCommand(resetCmd)
}
