// Package blameprev wires the git backed collaborators to the provenance walker.
//
// Typical use:
//
//	bp, err := blameprev.New(ctx, blameprev.Opts{RepoDir: dir})
//	cursor, err := bp.Cursor(ctx, "main.go", "HEAD", 10)
//	res, err := bp.FindPreviousChange(ctx, cursor)
//
// Calling FindPreviousChange again with res.Cursor steps further back.
package blameprev

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disciplesalmon/blame-previous/blameprev/commitmeta"
	"github.com/disciplesalmon/blame-previous/blameprev/config"
	"github.com/disciplesalmon/blame-previous/blameprev/contentdiff"
	"github.com/disciplesalmon/blame-previous/blameprev/gitblame"
	"github.com/disciplesalmon/blame-previous/blameprev/gitblob"
	"github.com/disciplesalmon/blame-previous/blameprev/gitdiff"
	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/parentsgraph"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
)

type Opts struct {
	// RepoDir is the directory of the git repository.
	RepoDir string

	// GitCommand defaults to git.
	GitCommand string

	// Differ selects the line differ, config.DifferGit (default) or config.DifferContent.
	Differ string

	// IgnoreWhitespace treats lines differing only in whitespace as unchanged. Only supported by
	// the git differ.
	IgnoreWhitespace bool

	// AttributeRoot reports the root commit as the change that introduced a line.
	AttributeRoot bool

	// UseBlameSeed asks git blame for the introducing commit instead of diffing revision by
	// revision.
	UseBlameSeed bool

	// AllBranches loads commits of all refs into the graph, not only those reachable from HEAD.
	AllBranches bool

	BlobCacheSize int
	MaxParallel   int

	// Retries is the number of times an unresolvable revision is retried after reloading the
	// commit graph. 0 disables retries.
	Retries int

	Logger logger.Logger
}

// OptsFromConfig returns options for repoDir with defaults from c.
func OptsFromConfig(repoDir string, c config.Config) Opts {
	return Opts{
		RepoDir:          repoDir,
		GitCommand:       c.GitCommand,
		Differ:           c.Differ,
		IgnoreWhitespace: c.IgnoreWhitespace,
		AttributeRoot:    c.AttributeRoot,
		UseBlameSeed:     c.BlameSeed,
		AllBranches:      c.AllBranches,
		BlobCacheSize:    c.BlobCacheSize,
		MaxParallel:      c.MaxParallel,
		Retries:          c.Retries,
	}
}

type BlamePrev struct {
	opts Opts

	graph   *parentsgraph.Graph
	blobs   *gitblob.Store
	blamer  *gitblame.Blamer
	gitdiff *gitdiff.Differ
	differ  provenance.LineDiffer
	meta    *commitmeta.Processor
	walker  *provenance.Walker
}

func New(ctx context.Context, opts Opts) (*BlamePrev, error) {
	if opts.RepoDir == "" {
		return nil, errors.New("RepoDir is required")
	}
	if opts.GitCommand == "" {
		opts.GitCommand = "git"
	}
	if opts.Differ == "" {
		opts.Differ = config.DifferGit
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if err := gitexec.Prepare(ctx, opts.GitCommand, opts.RepoDir); err != nil {
		return nil, err
	}

	s := &BlamePrev{}
	s.opts = opts
	s.graph = parentsgraph.New(parentsgraph.Opts{
		RepoDir:     opts.RepoDir,
		GitCommand:  opts.GitCommand,
		AllBranches: opts.AllBranches,
		Logger:      opts.Logger,
	})
	var err error
	s.blobs, err = gitblob.New(gitblob.Opts{
		RepoDir:    opts.RepoDir,
		GitCommand: opts.GitCommand,
		CacheSize:  opts.BlobCacheSize,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.blamer = gitblame.New(gitblame.Opts{
		RepoDir:    opts.RepoDir,
		GitCommand: opts.GitCommand,
		Blobs:      s.blobs,
		Logger:     opts.Logger,
	})
	s.gitdiff = gitdiff.New(gitdiff.Opts{
		RepoDir:          opts.RepoDir,
		GitCommand:       opts.GitCommand,
		IgnoreWhitespace: opts.IgnoreWhitespace,
		Logger:           opts.Logger,
	})
	switch opts.Differ {
	case config.DifferGit:
		s.differ = s.gitdiff
	case config.DifferContent:
		if opts.IgnoreWhitespace {
			return nil, errors.New("IgnoreWhitespace is not supported by the content differ")
		}
		s.differ = contentdiff.New(contentdiff.Opts{
			Blobs:   s.blobs,
			Renames: s.gitdiff,
			Logger:  opts.Logger,
		})
	default:
		return nil, errors.Errorf("unknown differ %q", opts.Differ)
	}
	s.meta = commitmeta.New(commitmeta.Opts{RepoDir: opts.RepoDir, GitCommand: opts.GitCommand})
	s.walker = provenance.New(provenance.Opts{
		Graph:         s.graph,
		Differ:        s.differ,
		Blame:         s.blamer,
		Logger:        opts.Logger,
		AttributeRoot: opts.AttributeRoot,
		UseBlameSeed:  opts.UseBlameSeed,
		MaxParallel:   opts.MaxParallel,
	})
	return s, nil
}

// Resolve turns a user supplied revision into a full commit sha.
func (s *BlamePrev) Resolve(ctx context.Context, rev string) (provenance.Revision, error) {
	if rev == "" {
		rev = "HEAD"
	}
	return s.graph.Resolve(ctx, rev)
}

// Cursor builds a cursor from user input. path may be relative to the repository root or an
// absolute path inside it.
func (s *BlamePrev) Cursor(ctx context.Context, path string, rev string, line int) (provenance.LineCursor, error) {
	r, err := s.Resolve(ctx, rev)
	if err != nil {
		return provenance.LineCursor{}, err
	}
	p, err := s.relPath(path)
	if err != nil {
		return provenance.LineCursor{}, err
	}
	return provenance.LineCursor{File: provenance.FileLocator{Path: p, Revision: r}, Line: line}, nil
}

func (s *BlamePrev) relPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	root, err := filepath.Abs(s.opts.RepoDir)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if r, err := filepath.EvalSymlinks(path); err == nil {
		path = r
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(provenance.ErrFileNotFound, "path %v is outside of repository %v", path, root)
	}
	return filepath.ToSlash(rel), nil
}

// FindPreviousChange returns the previous change of the line at cursor. Unresolvable revisions
// are retried Opts.Retries times after reloading the commit graph.
func (s *BlamePrev) FindPreviousChange(ctx context.Context, cursor provenance.LineCursor) (provenance.Result, error) {
	if s.opts.Retries <= 0 {
		return s.walker.FindPreviousChange(ctx, cursor)
	}
	var res provenance.Result
	op := func() error {
		var err error
		res, err = s.walker.FindPreviousChange(ctx, cursor)
		if err != nil && !provenance.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.opts.Logger.Info("blameprev: retrying after reloading commit graph", "err", err, "wait", wait)
		s.Refresh()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.Retries)), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return provenance.Result{}, err
	}
	return res, nil
}

// History steps back from cursor until there is no previous change or limit steps were made.
// limit <= 0 means no limit. The starting cursor is not included.
func (s *BlamePrev) History(ctx context.Context, cursor provenance.LineCursor, limit int) (res []provenance.LineCursor, _ error) {
	c := cursor
	for limit <= 0 || len(res) < limit {
		r, err := s.FindPreviousChange(ctx, c)
		if err != nil {
			return res, err
		}
		if r.Outcome == provenance.NoPreviousChange {
			break
		}
		res = append(res, r.Cursor)
		c = r.Cursor
	}
	return res, nil
}

// Blame runs git blame on the file.
func (s *BlamePrev) Blame(ctx context.Context, loc provenance.FileLocator) (gitblame.Result, error) {
	return s.blamer.Run(ctx, loc)
}

// LineContent returns the text of the line at cursor.
func (s *BlamePrev) LineContent(ctx context.Context, cursor provenance.LineCursor) (string, error) {
	data, err := s.blobs.Read(ctx, cursor.File)
	if err != nil {
		return "", err
	}
	l, ok := gitblob.Line(data, cursor.Line)
	if !ok {
		return "", errors.Wrapf(provenance.ErrLineOutOfRange, "line %d of %v", cursor.Line, cursor.File)
	}
	return l, nil
}

// LineCount returns the number of lines of the file.
func (s *BlamePrev) LineCount(ctx context.Context, loc provenance.FileLocator) (int, error) {
	return s.blamer.LineCountAt(ctx, loc)
}

// Commit returns metadata of rev.
func (s *BlamePrev) Commit(ctx context.Context, rev provenance.Revision) (commitmeta.Commit, error) {
	return s.meta.Get(ctx, rev)
}

// Refresh drops the cached commit graph, picking up commits and refs created since it was loaded.
func (s *BlamePrev) Refresh() {
	s.graph.Reset()
}

// GitDir returns the absolute .git directory of the repository.
func (s *BlamePrev) GitDir(ctx context.Context) (string, error) {
	return gitexec.GitDir(ctx, s.opts.GitCommand, s.opts.RepoDir)
}
