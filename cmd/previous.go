package cmd

import (
	"context"
	"strconv"

	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdprev"
	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdutils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var previousCmd = &cobra.Command{
	Use:   "previous [<file> <line>]",
	Short: "Print the previous change of a line",
	Args: func(cmd *cobra.Command, args []string) error {
		if cont, _ := cmd.Flags().GetBool("continue"); cont {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		opts := cmdprev.PreviousOpts{}
		opts.Continue, _ = cmd.Flags().GetBool("continue")
		opts.Rev, _ = cmd.Flags().GetString("rev")
		if !opts.Continue {
			opts.Path = args[0]
			line, err := parseLine(args[1])
			if err != nil {
				cmdutils.ExitWithErr(err)
			}
			opts.Line = line
		}
		run(cmd, func(ctx context.Context, env *cmdprev.Env) error {
			return cmdprev.Previous(ctx, env, opts)
		})
	},
}

func parseLine(s string) (int, error) {
	line, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("invalid line number %q", s)
	}
	return line, nil
}

func init() {
	previousCmd.Flags().String("rev", "HEAD", "starting revision")
	previousCmd.Flags().Bool("continue", false, "continue from the last printed change")
	rootCmd.AddCommand(previousCmd)
}
