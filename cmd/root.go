package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev"
	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdprev"
	"github.com/disciplesalmon/blame-previous/blameprev/cmd/cmdutils"
	"github.com/disciplesalmon/blame-previous/blameprev/config"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blameprev",
	Short: "Step back through the changes of a single line",
	Long: `blameprev finds the commit that previously changed a line, following the line through
renames, line shifts and merges. Run previous repeatedly, or history for the whole chain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// run calls runE and exits on error. Exiting happens after runE returned so that profiles are
// written and the context is canceled.
func run(cmd *cobra.Command, fn func(ctx context.Context, env *cmdprev.Env) error) {
	if err := runE(cmd, fn); err != nil {
		cmdutils.ExitWithErr(err)
	}
}

// runE sets up profiling, logging, configuration and the cursor stack, then calls fn.
func runE(cmd *cobra.Command, fn func(ctx context.Context, env *cmdprev.Env) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	flags := cmd.Flags()
	if p, _ := flags.GetString("profile"); p != "" {
		onEnd, err := cmdutils.EnableProfiling(p)
		if err != nil {
			return err
		}
		defer onEnd()
	}
	if memLogs, _ := flags.GetBool("mem-logs"); memLogs {
		onEnd := cmdutils.StartMemLogs(color.Error, 5*time.Second)
		defer onEnd()
	}

	repoDir, _ := flags.GetString("repo")
	verbose, _ := flags.GetBool("verbose")
	opts, err := optsFromFlags(cmd, repoDir)
	if err != nil {
		return err
	}

	return cmdutils.RunOnRepo(ctx, color.Error, verbose, opts.GitCommand, repoDir, func() error {
		bp, err := blameprev.New(ctx, opts)
		if err != nil {
			return err
		}
		env, err := cmdprev.NewEnv(ctx, bp, color.Output)
		if err != nil {
			return err
		}
		return fn(ctx, env)
	})
}

// optsFromFlags loads the repository config and applies flags set on the command line.
func optsFromFlags(cmd *cobra.Command, repoDir string) (blameprev.Opts, error) {
	flags := cmd.Flags()
	loc, _ := flags.GetString("config")
	c, err := config.Load(repoDir, loc)
	if err != nil {
		return blameprev.Opts{}, err
	}
	if flags.Changed("differ") {
		c.Differ, _ = flags.GetString("differ")
	}
	if flags.Changed("ignore-whitespace") {
		c.IgnoreWhitespace, _ = flags.GetBool("ignore-whitespace")
	}
	if flags.Changed("attribute-root") {
		c.AttributeRoot, _ = flags.GetBool("attribute-root")
	}
	if flags.Changed("blame-seed") {
		c.BlameSeed, _ = flags.GetBool("blame-seed")
	}
	if flags.Changed("all-branches") {
		c.AllBranches, _ = flags.GetBool("all-branches")
	}
	if flags.Changed("max-parallel") {
		c.MaxParallel, _ = flags.GetInt("max-parallel")
	}
	if flags.Changed("retries") {
		c.Retries, _ = flags.GetInt("retries")
	}
	if err := c.Validate(); err != nil {
		return blameprev.Opts{}, err
	}
	opts := blameprev.OptsFromConfig(repoDir, c)
	opts.Logger = newLogger(cmd)
	return opts, nil
}

func newLogger(cmd *cobra.Command) logger.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	if logJSON {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetFormatter(&logrus.JSONFormatter{})
		if verbose {
			l.SetLevel(logrus.DebugLevel)
		}
		return logger.NewLogrusLogger(l)
	}
	if verbose {
		return logger.NewDefaultLogger(os.Stderr, true)
	}
	return logger.NewNopLogger()
}

func init() {
	addFlags(rootCmd.PersistentFlags())
}

func addFlags(flags *pflag.FlagSet) {
	flags.String("repo", ".", "git repository directory")
	flags.String("config", "", "config file, defaults to "+config.FileName+" in the repository root")
	flags.String("profile", "", "one of mem, mutex, cpu, block, trace or empty to disable")
	flags.Bool("mem-logs", false, "log heap usage every 5 sec")
	flags.Bool("log-json", false, "log as json")
	flags.BoolP("verbose", "v", false, "log walk progress")
	flags.String("differ", config.DifferGit, "line differ, git or content")
	flags.Bool("ignore-whitespace", false, "treat whitespace only changes as unchanged lines")
	flags.Bool("attribute-root", false, "report the root commit as the change that introduced a line")
	flags.Bool("blame-seed", false, "use git blame to skip revisions")
	flags.Bool("all-branches", false, "load commits of all refs")
	flags.Int("max-parallel", 0, "max concurrent diffs against merge parents, 0 for no limit")
	flags.Int("retries", 2, "retries for revisions that could not be resolved")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cmdutils.ExitWithErr(err)
	}
}
