// Package memrepo is an in-memory repository implementing the provenance collaborators.
// Used in tests where spinning up git is unnecessary.
package memrepo

import (
	"context"
	"sync"

	"github.com/disciplesalmon/blame-previous/blameprev/linemap"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
)

// Binary marks file content the differ refuses to diff.
const Binary = "\x00binary"

type commit struct {
	parents []provenance.Revision
	files   map[string]string
	// renames maps new path to the path in parents
	renames map[string]string
	// index in insertion order
	index int
}

// Repo holds commits added oldest first.
type Repo struct {
	mu      sync.Mutex
	commits map[provenance.Revision]*commit
	blame   map[provenance.FileLocator][]provenance.BlameEntry
	diffs   int
}

func New() *Repo {
	return &Repo{
		commits: map[provenance.Revision]*commit{},
		blame:   map[provenance.FileLocator][]provenance.BlameEntry{},
	}
}

// Commit adds a revision with a full snapshot of files. Parents must already exist.
func (s *Repo) Commit(rev string, parents []string, files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &commit{files: files, renames: map[string]string{}, index: len(s.commits)}
	for _, p := range parents {
		if _, ok := s.commits[provenance.Revision(p)]; !ok {
			panic("parent not added before child: " + p)
		}
		c.parents = append(c.parents, provenance.Revision(p))
	}
	s.commits[provenance.Revision(rev)] = c
}

// Rename records that newPath in rev was oldPath in its parents.
func (s *Repo) Rename(rev, oldPath, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[provenance.Revision(rev)].renames[newPath] = oldPath
}

// SetBlame sets the entries returned by BlameAt.
func (s *Repo) SetBlame(file provenance.FileLocator, entries []provenance.BlameEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blame[file] = entries
}

// Diffs returns the number of Correspond calls so far.
func (s *Repo) Diffs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diffs
}

func (s *Repo) get(rev provenance.Revision) (*commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commits[rev]
	if !ok {
		return nil, errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %v", rev)
	}
	return c, nil
}

func (s *Repo) ParentsOf(ctx context.Context, rev provenance.Revision) ([]provenance.Revision, error) {
	c, err := s.get(rev)
	if err != nil {
		return nil, err
	}
	return c.parents, nil
}

// TopoRank ranks later added commits lower.
func (s *Repo) TopoRank(ctx context.Context, rev provenance.Revision) (int, error) {
	c, err := s.get(rev)
	if err != nil {
		return 0, err
	}
	return -c.index, nil
}

func (s *Repo) content(file provenance.FileLocator) (string, error) {
	c, err := s.get(file.Revision)
	if err != nil {
		return "", err
	}
	data, ok := c.files[file.Path]
	if !ok {
		return "", errors.Wrapf(provenance.ErrFileNotFound, "file %v", file)
	}
	return data, nil
}

func (s *Repo) LineCountAt(ctx context.Context, file provenance.FileLocator) (int, error) {
	data, err := s.content(file)
	if err != nil {
		return 0, err
	}
	return len(linemap.Split(data)), nil
}

func (s *Repo) BlameAt(ctx context.Context, file provenance.FileLocator) ([]provenance.BlameEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.blame[file]
	if !ok {
		return nil, errors.Errorf("no blame for %v", file)
	}
	return res, nil
}

func (s *Repo) Correspond(ctx context.Context, newer, older provenance.FileLocator, line int) (provenance.Correspondence, error) {
	if err := ctx.Err(); err != nil {
		return provenance.Correspondence{}, err
	}
	s.mu.Lock()
	s.diffs++
	s.mu.Unlock()

	nc, err := s.get(newer.Revision)
	if err != nil {
		return provenance.Correspondence{}, err
	}
	oc, err := s.get(older.Revision)
	if err != nil {
		return provenance.Correspondence{}, err
	}
	newData, ok := nc.files[newer.Path]
	if !ok {
		return provenance.Correspondence{}, errors.Wrapf(provenance.ErrFileNotFound, "file %v", newer)
	}
	oldPath := newer.Path
	if p, ok := nc.renames[newer.Path]; ok {
		oldPath = p
	}
	oldData, ok := oc.files[oldPath]
	if !ok {
		return provenance.Unmatched, nil
	}
	if newData == Binary || oldData == Binary {
		return provenance.Correspondence{}, errors.Wrapf(provenance.ErrDiffUnavailable, "binary file %v", newer)
	}
	m := linemap.FromOpCodes(linemap.OpCodes(linemap.Split(oldData), linemap.Split(newData)), line)
	if !m.Matched {
		return provenance.Unmatched, nil
	}
	return provenance.Correspondence{Matched: true, OldPath: oldPath, OldLine: m.OldLine, ContentEqual: m.Equal}, nil
}
