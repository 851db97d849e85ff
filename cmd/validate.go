package cmd

import (
	"context"

	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdprev"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <files...>",
	Short: "Compare results with git blame for every line of the files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rev, _ := cmd.Flags().GetString("rev")
		run(cmd, func(ctx context.Context, env *cmdprev.Env) error {
			for _, p := range args {
				if err := cmdprev.Validate(ctx, env, p, rev); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	validateCmd.Flags().String("rev", "HEAD", "revision to validate")
	rootCmd.AddCommand(validateCmd)
}
