// Package parentsgraph loads the commit graph of a repository from git log and answers parent
// and topological rank queries for the provenance walker.
package parentsgraph

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/parentsgraph/parentsp"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
)

// Graph is safe for concurrent use. Data is loaded lazily on first query.
type Graph struct {
	opts Opts

	mu       sync.RWMutex
	loaded   bool
	extra    []string
	Parents  map[string][]string
	Children map[string][]string
	// rank is the position in git log --topo-order output, newest first
	rank map[string]int
}

type Opts struct {
	RepoDir    string
	GitCommand string
	// AllBranches loads commits of all refs, otherwise only those reachable from HEAD.
	AllBranches bool
	Logger      logger.Logger
}

func New(opts Opts) *Graph {
	if opts.GitCommand == "" {
		opts.GitCommand = "git"
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	s := &Graph{}
	s.opts = opts
	return s
}

// Read (re)loads the graph.
func (s *Graph) Read(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *Graph) read(ctx context.Context) error {
	start := time.Now()
	s.opts.Logger.Info("parentsgraph: starting reading")
	log, err := s.retrieveParents(ctx)
	if err != nil {
		return err
	}
	s.Parents = log.Parents()
	s.rank = map[string]int{}
	for i, e := range log {
		s.rank[e.Commit] = i
	}
	s.Children = map[string][]string{}
	for commit, parents := range s.Parents {
		if _, ok := s.Children[commit]; !ok {
			// make sure that even if commit does not have any children we have a map key for it
			s.Children[commit] = nil
		}
		for _, p := range parents {
			s.Children[p] = append(s.Children[p], commit)
		}
	}
	for _, data := range s.Children {
		sort.Strings(data)
	}
	s.loaded = true
	s.opts.Logger.Info("parentsgraph: completed reading", "commits", len(s.Parents), "d", time.Since(start))
	return nil
}

// Reset drops loaded data, the next query reloads it.
func (s *Graph) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.Parents = nil
	s.Children = nil
	s.rank = nil
}

func (s *Graph) retrieveParents(ctx context.Context) (parentsp.Log, error) {
	args := []string{
		"log",
		"--topo-order",
		"--no-abbrev-commit",
		"--pretty=format:%H@%P",
	}
	if s.opts.AllBranches {
		args = append(args, "--all")
	} else {
		args = append(args, "HEAD")
	}
	args = append(args, s.extra...)
	args = append(args, "--")

	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, args)
	if err != nil {
		return nil, err
	}
	return parentsp.New(bytes.NewReader(out)).Run()
}

// Resolve turns a user supplied revision (HEAD, branch, tag, short sha) into a full commit sha.
func (s *Graph) Resolve(ctx context.Context, rev string) (provenance.Revision, error) {
	full, err := s.verify(ctx, provenance.Revision(rev))
	return provenance.Revision(full), err
}

// lookup returns parents and rank of rev, loading the graph or extending it with rev when
// needed.
func (s *Graph) lookup(ctx context.Context, rev provenance.Revision) ([]string, int, error) {
	s.mu.RLock()
	if s.loaded {
		if parents, ok := s.Parents[string(rev)]; ok {
			r := s.rank[string(rev)]
			s.mu.RUnlock()
			return parents, r, nil
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.read(ctx); err != nil {
			return nil, 0, err
		}
	}
	if parents, ok := s.Parents[string(rev)]; ok {
		return parents, s.rank[string(rev)], nil
	}

	// not reachable from loaded tips, or created after loading
	full, err := s.verify(ctx, rev)
	if err != nil {
		return nil, 0, err
	}
	if full != string(rev) {
		return nil, 0, errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %v is not a full commit sha", rev)
	}
	s.opts.Logger.Debug("parentsgraph: reloading with extra tip", "rev", rev.Short())
	s.extra = append(s.extra, full)
	if err := s.read(ctx); err != nil {
		return nil, 0, err
	}
	if parents, ok := s.Parents[string(rev)]; ok {
		return parents, s.rank[string(rev)], nil
	}
	return nil, 0, errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %v missing from log", rev)
}

func (s *Graph) verify(ctx context.Context, rev provenance.Revision) (string, error) {
	if rev == "" || strings.HasPrefix(string(rev), "-") {
		return "", errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %q", rev)
	}
	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, []string{"rev-parse", "--verify", "--quiet", string(rev) + "^{commit}"})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %v", rev)
	}
	return strings.TrimSpace(string(out)), nil
}

// ParentsOf returns parents in commit order, first parent first.
func (s *Graph) ParentsOf(ctx context.Context, rev provenance.Revision) ([]provenance.Revision, error) {
	parents, _, err := s.lookup(ctx, rev)
	if err != nil {
		return nil, err
	}
	res := make([]provenance.Revision, len(parents))
	for i, p := range parents {
		res[i] = provenance.Revision(p)
	}
	return res, nil
}

// TopoRank is the position of rev in topological order, newest first.
func (s *Graph) TopoRank(ctx context.Context, rev provenance.Revision) (int, error) {
	_, r, err := s.lookup(ctx, rev)
	return r, err
}
