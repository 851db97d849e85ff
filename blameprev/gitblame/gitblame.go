// Package gitblame implements provenance.BlameProvider and provenance.BlameSeeder with git blame.
package gitblame

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/gitblob"
	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
)

type Line struct {
	Content    string
	CommitHash string
	// OrigPath and OrigLine locate the line in CommitHash.
	OrigPath string
	OrigLine int
}

func (l Line) String() string {
	return l.CommitHash + ":" + l.Content
}

type Result struct {
	Lines []Line
}

func (r Result) String() string {
	out := []string{}
	for i, l := range r.Lines {
		out = append(out, strconv.Itoa(i+1)+":"+l.String())
	}
	return strings.Join(out, "\n")
}

type Opts struct {
	RepoDir    string
	GitCommand string
	// Blobs is used for line counts.
	Blobs  *gitblob.Store
	Logger logger.Logger
}

type Blamer struct {
	opts Opts
}

func New(opts Opts) *Blamer {
	if opts.GitCommand == "" {
		opts.GitCommand = "git"
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	s := &Blamer{}
	s.opts = opts
	return s
}

// Run blames the file at loc.Revision.
func (s *Blamer) Run(ctx context.Context, loc provenance.FileLocator) (res Result, _ error) {
	start := time.Now()
	if strings.HasPrefix(string(loc.Revision), "-") {
		return res, errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %q", loc.Revision)
	}
	args := gitexec.PathArgs(
		"blame",
		"--porcelain",
		string(loc.Revision),
		"--",
		loc.Path,
	)
	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, args)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if gitexec.IsUnknownRevision(err) {
			return res, errors.Wrapf(provenance.ErrRevisionUnresolvable, "blame %v: %v", loc, err)
		}
		if gitexec.IsMissingPath(err) {
			return res, errors.Wrapf(provenance.ErrFileNotFound, "blame %v: %v", loc, err)
		}
		return res, err
	}
	res0, err := parseOutput(string(out))
	if err != nil {
		return res, err
	}
	for _, l0 := range res0 {
		l := Line{Content: l0.Content, CommitHash: l0.CommitHash, OrigLine: l0.OrigLine}
		// names with control characters, quotes or backslashes stay quoted
		l.OrigPath, err = gitexec.UnquotePath(l0.Meta["filename"])
		if err != nil {
			return res, err
		}
		if l.OrigPath == "" {
			l.OrigPath = loc.Path
		}
		res.Lines = append(res.Lines, l)
	}
	s.opts.Logger.Debug("gitblame: blamed file", "file", loc, "lines", len(res.Lines), "d", time.Since(start))
	return res, nil
}

// LineCountAt returns the number of lines of the file at loc.Revision.
func (s *Blamer) LineCountAt(ctx context.Context, loc provenance.FileLocator) (int, error) {
	data, err := s.opts.Blobs.Read(ctx, loc)
	if err != nil {
		return 0, err
	}
	return gitblob.LineCount(data), nil
}

// BlameAt returns the commit that introduced every line of the file.
func (s *Blamer) BlameAt(ctx context.Context, loc provenance.FileLocator) ([]provenance.BlameEntry, error) {
	r, err := s.Run(ctx, loc)
	if err != nil {
		return nil, err
	}
	res := make([]provenance.BlameEntry, 0, len(r.Lines))
	for i, l := range r.Lines {
		res = append(res, provenance.BlameEntry{
			Line:     i + 1,
			Revision: provenance.Revision(l.CommitHash),
			OrigPath: l.OrigPath,
			OrigLine: l.OrigLine,
		})
	}
	return res, nil
}
