// Package commitmeta reads commit metadata used when rendering walk results.
package commitmeta

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

type Opts struct {
	RepoDir    string
	GitCommand string
}

type Processor struct {
	opts  Opts
	cache *lru.Cache
}

const cacheSize = 1024

func New(opts Opts) *Processor {
	if opts.GitCommand == "" {
		opts.GitCommand = "git"
	}
	s := &Processor{opts: opts}
	// only fails on non-positive size
	s.cache, _ = lru.New(cacheSize)
	return s
}

// Commit is a specific detail around a commit
type Commit struct {
	SHA            string
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	Date           time.Time
	Message        string

	Parents []string
	Signed  bool
}

// Author returns either the author name (preference) or the email if not found
func (c Commit) Author() string {
	if c.AuthorName != "" {
		return c.AuthorName
	}
	return c.AuthorEmail
}

// IsMerge is true for commits with more than one parent.
func (c Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

const format = "--pretty=format:!SHA: %H%n!Parents: %P%n!Committer: %ce%n!CName: %cn%n!Author: %ae%n!AName: %an%n!Signed-Key: %GK%n!Date: %aI%n!Message: %s%n"

// Get returns metadata of one commit.
func (s *Processor) Get(ctx context.Context, rev provenance.Revision) (Commit, error) {
	if v, ok := s.cache.Get(rev); ok {
		return v.(Commit), nil
	}
	if rev == "" || strings.HasPrefix(string(rev), "-") {
		return Commit{}, errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %q", rev)
	}
	out, err := gitexec.Exec(ctx, s.opts.GitCommand, s.opts.RepoDir, []string{"show", "-s", format, string(rev) + "^{commit}", "--"})
	if err != nil {
		if ctx.Err() != nil {
			return Commit{}, ctx.Err()
		}
		return Commit{}, errors.Wrapf(provenance.ErrRevisionUnresolvable, "rev %v: %v", rev, err)
	}
	res, err := parse(out)
	if err != nil {
		return Commit{}, fmt.Errorf("error processing commit %v from %v. %v", rev, s.opts.RepoDir, err)
	}
	s.cache.Add(rev, res)
	return res, nil
}

var (
	commitPrefix        = []byte("!SHA: ")
	authorPrefix        = []byte("!Author: ")
	authorNamePrefix    = []byte("!AName: ")
	committerPrefix     = []byte("!Committer: ")
	committerNamePrefix = []byte("!CName: ")
	signedEmailPrefix   = []byte("!Signed-Key: ")
	messagePrefix       = []byte("!Message: ")
	parentsPrefix       = []byte("!Parents: ")
	datePrefix          = []byte("!Date: ")
)

func parseDate(d string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, d)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing commit date `%v`. %v", d, err)
	}
	return t, nil
}

func parse(data []byte) (res Commit, _ error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		buf := scanner.Bytes()
		switch {
		case bytes.HasPrefix(buf, commitPrefix):
			res.SHA = string(buf[len(commitPrefix):])
		case bytes.HasPrefix(buf, parentsPrefix):
			parents := string(buf[len(parentsPrefix):])
			if len(parents) != 0 {
				res.Parents = strings.Split(parents, " ")
			}
		case bytes.HasPrefix(buf, datePrefix):
			d := bytes.TrimSpace(buf[len(datePrefix):])
			t, err := parseDate(string(d))
			if err != nil {
				return res, err
			}
			res.Date = t
		case bytes.HasPrefix(buf, authorPrefix):
			res.AuthorEmail = string(buf[len(authorPrefix):])
		case bytes.HasPrefix(buf, authorNamePrefix):
			res.AuthorName = string(buf[len(authorNamePrefix):])
		case bytes.HasPrefix(buf, committerPrefix):
			res.CommitterEmail = string(buf[len(committerPrefix):])
		case bytes.HasPrefix(buf, committerNamePrefix):
			res.CommitterName = string(buf[len(committerNamePrefix):])
		case bytes.HasPrefix(buf, signedEmailPrefix):
			res.Signed = len(buf) > len(signedEmailPrefix)
		case bytes.HasPrefix(buf, messagePrefix):
			res.Message = string(buf[len(messagePrefix):])
		}
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}
	if res.SHA == "" {
		return res, errors.New("no commit in output")
	}
	return res, nil
}
