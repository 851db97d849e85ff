package cmd

import (
	"context"

	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdprev"
	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdutils"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <file> <line>",
	Short: "Print all previous changes of a line",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		line, err := parseLine(args[1])
		if err != nil {
			cmdutils.ExitWithErr(err)
		}
		opts := cmdprev.HistoryOpts{Path: args[0], Line: line}
		opts.Rev, _ = cmd.Flags().GetString("rev")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		run(cmd, func(ctx context.Context, env *cmdprev.Env) error {
			return cmdprev.History(ctx, env, opts)
		})
	},
}

func init() {
	historyCmd.Flags().String("rev", "HEAD", "starting revision")
	historyCmd.Flags().Int("limit", 0, "max number of changes to print, 0 for all")
	rootCmd.AddCommand(historyCmd)
}
