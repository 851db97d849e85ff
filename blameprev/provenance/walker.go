// Package provenance finds the previous revision at which a line of a file changed.
//
// The walker starts at a LineCursor, follows the line through parent revisions while its content
// stays identical and stops at the revision that introduced that content. When the starting
// revision is itself the one that changed the line, the walk continues from the content the line
// had before, so calling FindPreviousChange again on a result always steps further back.
//
// Repository access goes through RevisionGraph, LineDiffer and BlameProvider. The walker keeps no
// state between calls.
package provenance

import (
	"context"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type Opts struct {
	Graph  RevisionGraph
	Differ LineDiffer
	Blame  BlameProvider

	// Logger for walk progress. Hops are logged at debug level.
	Logger logger.Logger

	// AttributeRoot reports a root commit as the change that introduced a line. By default
	// reaching a root with unchanged content ends the walk with NoPreviousChange.
	AttributeRoot bool

	// UseBlameSeed reads the introducing revision from whole-file blame when Blame implements
	// BlameSeeder, instead of diffing revision by revision.
	UseBlameSeed bool

	// MaxParallel limits concurrent diffs against parents of a merge commit. 0 means no limit.
	MaxParallel int
}

// Walker is safe for concurrent use if its collaborators are.
type Walker struct {
	opts   Opts
	ranker TopoRanker
	seeder BlameSeeder
}

func New(opts Opts) *Walker {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	s := &Walker{}
	s.opts = opts
	if r, ok := opts.Graph.(TopoRanker); ok {
		s.ranker = r
	}
	if opts.UseBlameSeed {
		if b, ok := opts.Blame.(BlameSeeder); ok {
			s.seeder = b
		}
	}
	return s
}

// FindPreviousChange returns the nearest strict ancestor of cursor's revision at which the line
// changed. Result.Outcome is NoPreviousChange when history has nothing older.
func (s *Walker) FindPreviousChange(ctx context.Context, cursor LineCursor) (res Result, rerr error) {
	start := time.Now()
	defer func() {
		if rerr != nil {
			s.opts.Logger.Debug("provenance: walk failed", "cursor", cursor, "err", rerr)
			return
		}
		s.opts.Logger.Info("provenance: completed walk", "cursor", cursor, "outcome", res.Outcome, "result", res.Cursor, "visited", res.Visited, "d", time.Since(start))
	}()

	parents, err := s.validate(ctx, cursor)
	if err != nil {
		return Result{}, err
	}

	w := &walk{Walker: s}
	if len(parents) == 0 {
		return w.result(NoPreviousChange, node{}), nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	same, changed, err := w.hop(ctx, node{file: cursor.File, line: cursor.Line}, parents)
	if err != nil {
		return Result{}, err
	}

	var from []node
	switch {
	case len(same) != 0:
		// line came through unmodified, find where its current content was introduced
		from = same
	case len(changed) != 0:
		// the starting revision changed the line, trace the content it had before
		from = changed[:1]
	default:
		// introduced at the starting revision
		return w.result(NoPreviousChange, node{}), nil
	}
	return w.introducer(ctx, from)
}

func (s *Walker) validate(ctx context.Context, c LineCursor) ([]Revision, error) {
	if c.Line < 1 {
		return nil, errors.Wrapf(ErrLineOutOfRange, "line %d", c.Line)
	}
	parents, err := s.opts.Graph.ParentsOf(ctx, c.File.Revision)
	if err != nil {
		return nil, err
	}
	n, err := s.opts.Blame.LineCountAt(ctx, c.File)
	if err != nil {
		return nil, err
	}
	if c.Line > n {
		return nil, errors.Wrapf(ErrLineOutOfRange, "line %d of %v, file has %d lines", c.Line, c.File, n)
	}
	return parents, nil
}

// walk holds per call counters.
type walk struct {
	*Walker
	visited int
}

func (w *walk) result(o Outcome, n node) Result {
	r := Result{Outcome: o, Visited: w.visited}
	if o == Changed {
		r.Cursor = n.cursor()
	}
	return r
}

// introducer returns the revision that introduced the content tracked by from.
func (w *walk) introducer(ctx context.Context, from []node) (Result, error) {
	if len(from) == 1 && w.seeder != nil {
		if res, ok := w.seed(ctx, from[0]); ok {
			return res, nil
		}
	}

	f := newFrontier(w.ranker)
	for _, n := range from {
		if err := f.push(ctx, n); err != nil {
			return Result{}, err
		}
	}
	for f.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n := f.pop()
		parents, err := w.opts.Graph.ParentsOf(ctx, n.file.Revision)
		if err != nil {
			return Result{}, err
		}
		if len(parents) == 0 {
			if w.opts.AttributeRoot {
				return w.result(Changed, n), nil
			}
			return w.result(NoPreviousChange, n), nil
		}
		same, _, err := w.hop(ctx, n, parents)
		if err != nil {
			return Result{}, err
		}
		if len(same) == 0 {
			return w.result(Changed, n), nil
		}
		for _, p := range same {
			if err := f.push(ctx, p); err != nil {
				return Result{}, err
			}
		}
	}
	return w.result(NoPreviousChange, node{}), nil
}

// hop diffs n against all parents. same holds parents where the line is unchanged, changed
// holds parents where it has a counterpart with different content. Both keep parent order.
func (w *walk) hop(ctx context.Context, n node, parents []Revision) (same, changed []node, _ error) {
	w.visited++
	res := make([]Correspondence, len(parents))
	errs := make([]error, len(parents))
	diff := func(i int) {
		older := FileLocator{Path: n.file.Path, Revision: parents[i]}
		res[i], errs[i] = w.opts.Differ.Correspond(ctx, n.file, older, n.line)
	}
	if len(parents) == 1 {
		diff(0)
	} else {
		var g errgroup.Group
		if w.opts.MaxParallel > 0 {
			g.SetLimit(w.opts.MaxParallel)
		}
		for i := range parents {
			i := i
			g.Go(func() error {
				diff(i)
				return nil
			})
		}
		// errors are kept per parent in errs
		_ = g.Wait()
	}

	for i, p := range parents {
		if errs[i] != nil {
			return nil, nil, errs[i]
		}
		c := res[i]
		w.opts.Logger.Debug("provenance: hop", "from", n.cursor(), "parent", p.Short(), "matched", c.Matched, "old_line", c.OldLine, "equal", c.ContentEqual)
		if !c.Matched {
			continue
		}
		path := c.OldPath
		if path == "" {
			path = n.file.Path
		}
		m := node{file: FileLocator{Path: path, Revision: p}, line: c.OldLine}
		if c.ContentEqual {
			same = append(same, m)
		} else {
			changed = append(changed, m)
		}
	}
	return same, changed, nil
}

// seed asks whole-file blame for the introducer of n. ok is false when blame could not answer
// and the walk should proceed revision by revision.
func (w *walk) seed(ctx context.Context, n node) (_ Result, ok bool) {
	entries, err := w.seeder.BlameAt(ctx, n.file)
	if err != nil {
		w.opts.Logger.Debug("provenance: blame seed failed", "file", n.file, "err", err)
		return Result{}, false
	}
	for _, e := range entries {
		if e.Line != n.line {
			continue
		}
		parents, err := w.opts.Graph.ParentsOf(ctx, e.Revision)
		if err != nil {
			w.opts.Logger.Debug("provenance: blame seed revision unknown", "rev", e.Revision, "err", err)
			return Result{}, false
		}
		w.visited++
		if len(parents) == 0 && !w.opts.AttributeRoot {
			return w.result(NoPreviousChange, node{}), true
		}
		path := e.OrigPath
		if path == "" {
			path = n.file.Path
		}
		return w.result(Changed, node{file: FileLocator{Path: path, Revision: e.Revision}, line: e.OrigLine}), true
	}
	return Result{}, false
}
