package cmdutils

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var ErrRevParseFailed = errors.New("git rev-parse HEAD failed")

// RunOnRepo checks that repoDir is a git repository with at least one commit, then calls run.
// Progress is written to wr when verbose is set.
func RunOnRepo(ctx context.Context, wr io.Writer, verbose bool, gitCommand string, repoDir string, run func() error) error {
	start := time.Now()
	if verbose {
		fmt.Fprintf(wr, "starting processing repo:%v\n", color.GreenString(repoDir))
	}
	if err := gitexec.Prepare(ctx, gitCommand, repoDir); err != nil {
		return errors.Wrapf(ErrRevParseFailed, "happens for empty repos, repo: %v err: %v", repoDir, err)
	}

	err := run()
	if err != nil {
		if verbose {
			fmt.Fprintf(wr, "completed repo processing in %v repo: %v err: %v\n", time.Since(start), color.RedString(repoDir), color.RedString(err.Error()))
		}
		return err
	}

	if verbose {
		fmt.Fprintf(wr, "completed repo processing in %v repo: %v\n", time.Since(start), color.GreenString(repoDir))
	}
	return nil
}
