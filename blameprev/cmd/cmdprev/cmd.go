// Package cmdprev implements the blameprev commands. Output goes to the passed writer, the cobra
// layer only parses flags.
package cmdprev

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev"
	"github.com/disciplesalmon/blame-previous/blameprev/cursorstore"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/src-d/enry.v1"
)

// StoreDir is the directory inside .git holding the cursor stack.
const StoreDir = "blameprev"

// Env is shared by all commands.
type Env struct {
	BP    *blameprev.BlamePrev
	Store *cursorstore.Store
	Out   io.Writer
	// Now is used for commit ages, defaults to time.Now.
	Now func() time.Time
}

// NewEnv opens the cursor stack inside the repository git dir.
func NewEnv(ctx context.Context, bp *blameprev.BlamePrev, out io.Writer) (*Env, error) {
	dir, err := bp.GitDir(ctx)
	if err != nil {
		return nil, err
	}
	return &Env{
		BP:    bp,
		Store: cursorstore.New(filepath.Join(dir, StoreDir)),
		Out:   out,
	}, nil
}

func (s *Env) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type PreviousOpts struct {
	Path string
	Line int
	Rev  string
	// Continue starts from the top of the cursor stack, ignoring Path, Line and Rev.
	Continue bool
}

// Previous finds the previous change of one line, prints it and pushes it on the cursor stack.
// The starting cursor is pushed first when the stack is empty or does not end with it.
func Previous(ctx context.Context, env *Env, opts PreviousOpts) error {
	var start provenance.LineCursor
	if opts.Continue {
		top, ok, err := env.Store.Top()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("nothing to continue from, run previous with a file and line first")
		}
		start = top.Cursor()
	} else {
		var err error
		start, err = env.BP.Cursor(ctx, opts.Path, opts.Rev, opts.Line)
		if err != nil {
			return err
		}
	}

	res, err := env.BP.FindPreviousChange(ctx, start)
	if err != nil {
		return err
	}
	if res.Outcome == provenance.NoPreviousChange {
		fmt.Fprintf(env.Out, "%v %v\n", start, color.YellowString("no previous change"))
		return nil
	}

	top, ok, err := env.Store.Top()
	if err != nil {
		return err
	}
	created := env.now().Unix()
	if !ok || top.Cursor() != start {
		if err := env.Store.Push(cursorstore.NewEntry(start, created)); err != nil {
			return err
		}
	}
	if err := env.Store.Push(cursorstore.NewEntry(res.Cursor, created)); err != nil {
		return err
	}
	return printCursor(ctx, env, res.Cursor)
}

// Back pops the cursor stack and prints the cursor that is on top afterwards.
func Back(ctx context.Context, env *Env) error {
	_, ok, err := env.Store.Pop()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("cursor stack is empty")
	}
	top, ok, err := env.Store.Top()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(env.Out, color.YellowString("back at the start"))
		return nil
	}
	return printCursor(ctx, env, top.Cursor())
}

type HistoryOpts struct {
	Path  string
	Line  int
	Rev   string
	Limit int
}

// History prints every previous change of the line as a table, newest first.
func History(ctx context.Context, env *Env, opts HistoryOpts) error {
	start, err := env.BP.Cursor(ctx, opts.Path, opts.Rev, opts.Line)
	if err != nil {
		return err
	}
	hist, err := env.BP.History(ctx, start, opts.Limit)
	if err != nil {
		return err
	}

	content, err := env.BP.LineContent(ctx, start)
	if err != nil {
		return err
	}
	lang := enry.GetLanguage(filepath.Base(start.File.Path), []byte(content))
	if lang == "" {
		lang = "unknown"
	}
	fmt.Fprintf(env.Out, "%v %v\n", color.GreenString(start.String()), color.MagentaString(lang))

	if len(hist) == 0 {
		fmt.Fprintln(env.Out, color.YellowString("no previous change"))
		return nil
	}

	table := tablewriter.NewWriter(env.Out)
	table.SetHeader([]string{"#", "Commit", "Path", "Line", "Author", "Age", "Content"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for i, c := range hist {
		row, err := row(ctx, env, c)
		if err != nil {
			return err
		}
		table.Append(append([]string{strconv.Itoa(i + 1)}, row...))
	}
	table.Render()
	return nil
}

// Validate compares results with git blame for every line of the file.
func Validate(ctx context.Context, env *Env, path string, rev string) error {
	start, err := env.BP.Cursor(ctx, path, rev, 1)
	if err != nil {
		return err
	}
	stats, err := env.BP.Validate(ctx, start.File)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%v lines %d checked %d skipped %d\n", color.GreenString("valid"), stats.Lines, stats.Checked, stats.Skipped)
	return nil
}

func row(ctx context.Context, env *Env, c provenance.LineCursor) ([]string, error) {
	commit, err := env.BP.Commit(ctx, c.File.Revision)
	if err != nil {
		return nil, err
	}
	content, err := env.BP.LineContent(ctx, c)
	if err != nil {
		return nil, err
	}
	return []string{
		c.File.Revision.Short(),
		c.File.Path,
		strconv.Itoa(c.Line),
		commit.Author(),
		humanize.RelTime(commit.Date, env.now(), "ago", "from now"),
		content,
	}, nil
}

func printCursor(ctx context.Context, env *Env, c provenance.LineCursor) error {
	r, err := row(ctx, env, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "[%s] %s:%s %s %s\n    %s\n", color.CyanString(r[0]), color.GreenString(r[1]), r[2], r[3], r[4], r[5])
	return nil
}
