// Package gitblob reads file contents at a revision with git cat-file, caching recent reads.
package gitblob

import (
	"bytes"
	"context"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const DefaultCacheSize = 256

type Opts struct {
	RepoDir    string
	GitCommand string
	// CacheSize is the number of blobs kept in memory. Defaults to DefaultCacheSize.
	CacheSize int
	Logger    logger.Logger
}

// Store is safe for concurrent use.
type Store struct {
	opts  Opts
	cache *lru.Cache
}

func New(opts Opts) (*Store, error) {
	if opts.GitCommand == "" {
		opts.GitCommand = "git"
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	s := &Store{}
	s.opts = opts
	var err error
	s.cache, err = lru.New(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func cacheKey(loc provenance.FileLocator) uint64 {
	return xxhash.Sum64String(string(loc.Revision) + "\x00" + loc.Path)
}

// Read returns file content. Fails with provenance.ErrFileNotFound when the revision exists but
// has no such file, and with provenance.ErrRevisionUnresolvable when the revision does not exist.
func (s *Store) Read(ctx context.Context, loc provenance.FileLocator) ([]byte, error) {
	key := cacheKey(loc)
	if v, ok := s.cache.Get(key); ok {
		return v.([]byte), nil
	}
	if loc.Path == "" || strings.HasPrefix(string(loc.Revision), "-") {
		return nil, errors.Wrapf(provenance.ErrFileNotFound, "file %v", loc)
	}
	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, []string{"cat-file", "blob", string(loc.Revision) + ":" + loc.Path})
	if err != nil {
		return nil, s.classify(ctx, loc, err)
	}
	s.cache.Add(key, out)
	return out, nil
}

func (s *Store) classify(ctx context.Context, loc provenance.FileLocator, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, verr := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, []string{"rev-parse", "--verify", "--quiet", string(loc.Revision) + "^{commit}"})
	if verr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %v", loc.Revision)
	}
	s.opts.Logger.Debug("gitblob: cat-file failed", "file", loc, "err", err)
	return errors.Wrapf(provenance.ErrFileNotFound, "file %v", loc)
}

// LineCount returns the number of lines in data. A last line without newline counts.
func LineCount(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// Line returns 1-based line of data without the newline.
func Line(data []byte, line int) (string, bool) {
	if line < 1 {
		return "", false
	}
	for i := 1; len(data) > 0; i++ {
		j := bytes.IndexByte(data, '\n')
		var l []byte
		if j == -1 {
			l, data = data, nil
		} else {
			l, data = data[:j], data[j+1:]
		}
		if i == line {
			return string(l), true
		}
	}
	return "", false
}
