// Package gitdiff implements provenance.LineDiffer using zero context git diff output.
package gitdiff

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/diffparser"
	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/linemap"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
)

type Opts struct {
	RepoDir    string
	GitCommand string
	// IgnoreWhitespace passes -w, lines differing only in whitespace are treated as unchanged.
	IgnoreWhitespace bool
	Logger           logger.Logger
}

type Differ struct {
	opts Opts
}

func New(opts Opts) *Differ {
	if opts.GitCommand == "" {
		opts.GitCommand = "git"
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	s := &Differ{}
	s.opts = opts
	return s
}

// Diff returns changes from older to newer, limited to paths when given. Paths are matched
// literally. Renames are detected only among the files included in the diff.
func (s *Differ) Diff(ctx context.Context, older, newer provenance.Revision, paths ...string) ([]diffparser.Diff, error) {
	start := time.Now()
	args := gitexec.PathArgs(
		"diff",
		"-U0",
		"-M",
		"--no-color",
		"--no-ext-diff",
		"--src-prefix=a/",
		"--dst-prefix=b/",
	)
	if s.opts.IgnoreWhitespace {
		args = append(args, "-w")
	}
	args = append(args, string(older), string(newer), "--")
	args = append(args, paths...)

	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, args)
	if err != nil {
		return nil, wrapErr(ctx, err, older, newer)
	}
	res, err := diffparser.ParseAll(out)
	if err != nil {
		return nil, errors.Wrapf(provenance.ErrDiffUnavailable, "parsing diff %v..%v: %v", older.Short(), newer.Short(), err)
	}
	s.opts.Logger.Debug("gitdiff: diff", "older", older.Short(), "newer", newer.Short(), "paths", paths, "files", len(res), "d", time.Since(start))
	return res, nil
}

func wrapErr(ctx context.Context, err error, older, newer provenance.Revision) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if gitexec.IsUnknownRevision(err) {
		return errors.Wrapf(provenance.ErrRevisionUnresolvable, "%v..%v: %v", older.Short(), newer.Short(), err)
	}
	return errors.Wrapf(provenance.ErrDiffUnavailable, "%v..%v: %v", older.Short(), newer.Short(), err)
}

func findPath(diffs []diffparser.Diff, path string) (diffparser.Diff, bool) {
	for _, d := range diffs {
		if d.Path == path {
			return d, true
		}
	}
	return diffparser.Diff{}, false
}

// Correspond maps line of newer to older. The diff is limited to newer.Path first, when the file
// shows up as added the whole commit is diffed to find its rename source.
func (s *Differ) Correspond(ctx context.Context, newer, older provenance.FileLocator, line int) (provenance.Correspondence, error) {
	diffs, err := s.Diff(ctx, older.Revision, newer.Revision, newer.Path)
	if err != nil {
		return provenance.Correspondence{}, err
	}
	d, ok := findPath(diffs, newer.Path)
	if !ok {
		// untouched
		return provenance.Correspondence{Matched: true, OldPath: newer.Path, OldLine: line, ContentEqual: true}, nil
	}
	if d.IsNew() {
		diffs, err = s.Diff(ctx, older.Revision, newer.Revision)
		if err != nil {
			return provenance.Correspondence{}, err
		}
		d, ok = findPath(diffs, newer.Path)
		if !ok || !d.IsRename() {
			return provenance.Unmatched, nil
		}
	}
	if d.IsBinary {
		return provenance.Correspondence{}, errors.Wrapf(provenance.ErrDiffUnavailable, "binary file %v", newer)
	}
	m := linemap.FromHunks(d.LineHunks(), line)
	if !m.Matched {
		return provenance.Unmatched, nil
	}
	return provenance.Correspondence{Matched: true, OldPath: d.PathPrev, OldLine: m.OldLine, ContentEqual: m.Equal}, nil
}

// RenameSource returns the path newer.Path had in older. ok is false when the file did not exist
// in older.
func (s *Differ) RenameSource(ctx context.Context, newer provenance.FileLocator, older provenance.Revision) (_ string, ok bool, _ error) {
	args := gitexec.PathArgs("diff", "--name-status", "-M", "-z", "--no-ext-diff", string(older), string(newer.Revision), "--")
	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, args)
	if err != nil {
		return "", false, wrapErr(ctx, err, older, newer.Revision)
	}
	for _, st := range parseNameStatus(out) {
		if st.Path != newer.Path {
			continue
		}
		switch st.Status {
		case 'A':
			return "", false, nil
		case 'R', 'C':
			return st.PathPrev, true, nil
		}
		return st.Path, true, nil
	}
	return newer.Path, true, nil
}

type nameStatus struct {
	Status   byte
	PathPrev string
	Path     string
}

// parseNameStatus parses git diff --name-status -z output. Renames and copies are followed by
// two paths, other statuses by one.
func parseNameStatus(out []byte) (res []nameStatus) {
	fields := bytes.Split(bytes.TrimSuffix(out, []byte{0}), []byte{0})
	for i := 0; i < len(fields); i++ {
		f := strings.TrimSpace(string(fields[i]))
		if f == "" {
			continue
		}
		st := nameStatus{Status: f[0]}
		if st.Status == 'R' || st.Status == 'C' {
			if i+2 >= len(fields) {
				break
			}
			st.PathPrev = string(fields[i+1])
			st.Path = string(fields[i+2])
			i += 2
		} else {
			if i+1 >= len(fields) {
				break
			}
			st.PathPrev = string(fields[i+1])
			st.Path = st.PathPrev
			i++
		}
		res = append(res, st)
	}
	return
}
