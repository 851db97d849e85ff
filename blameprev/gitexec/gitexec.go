// Package gitexec runs git commands in a repository directory.
package gitexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Error is returned when git exits with non-zero status. Stderr holds git's own message.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (s *Error) Error() string {
	return fmt.Sprintf("failed executing git %v: %v: %v", strings.Join(s.Args, " "), s.Err, strings.TrimSpace(s.Stderr))
}

func (s *Error) Unwrap() error {
	return s.Err
}

// PathArgs prefixes a git command with global options for commands taking user paths. Pathspecs
// are matched literally, so glob characters and ":(" magic have no special meaning, and non ascii
// names are printed unquoted. Names with control characters, quotes or backslashes are still
// quoted, use UnquotePath on them.
func PathArgs(args ...string) []string {
	return append([]string{"--literal-pathspecs", "-c", "core.quotePath=false"}, args...)
}

// UnquotePath decodes a path git printed in C style quotes, e.g. "a/\303\251.txt". Unquoted
// input is returned as is.
func UnquotePath(p string) (string, error) {
	if len(p) < 2 || p[0] != '"' || p[len(p)-1] != '"' {
		return p, nil
	}
	res, err := strconv.Unquote(p)
	if err != nil {
		return "", errors.Wrapf(err, "invalid quoted path %s", p)
	}
	return res, nil
}

// Exec runs git and returns its full stdout.
func Exec(ctx context.Context, gitCommand string, repoDir string, args []string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	err := ExecIntoWriter(ctx, buf, gitCommand, repoDir, args)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExecIntoWriter runs git writing stdout into wr. When ctx is done the process is killed and
// ctx.Err() is returned.
func ExecIntoWriter(ctx context.Context, wr io.Writer, gitCommand string, repoDir string, args []string) error {
	stderr := bytes.NewBuffer(nil)
	c := exec.CommandContext(ctx, gitCommand, args...)
	c.Dir = repoDir
	c.Stderr = stderr
	c.Stdout = wr
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Prepare checks that repoDir is a git repository with at least one commit.
func Prepare(ctx context.Context, gitCommand, repoDir string) error {
	out, err := Exec(ctx, gitCommand, repoDir, []string{"rev-parse", "--verify", "HEAD"})
	if err != nil {
		return fmt.Errorf("can't get head commit for repo: %v err: %w", repoDir, err)
	}
	if !IsCommitSHA(strings.TrimSpace(string(out))) {
		return fmt.Errorf("invalid head commit for repo: %v got: %q", repoDir, out)
	}
	return nil
}

// IsCommitSHA reports whether s is a full object id, 40 hex chars for sha1 repositories or 64 for
// sha256.
func IsCommitSHA(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// GitDir returns the absolute path of the .git directory, or repoDir itself for bare repositories.
func GitDir(ctx context.Context, gitCommand, repoDir string) (string, error) {
	out, err := Exec(ctx, gitCommand, repoDir, []string{"rev-parse", "--absolute-git-dir"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IsUnknownRevision reports whether git failed because a revision does not exist.
func IsUnknownRevision(err error) bool {
	return stderrContains(err,
		"unknown revision",
		"bad revision",
		"bad object",
		"Needed a single revision",
		"not a valid object name",
		"invalid object name",
	)
}

// IsMissingPath reports whether git failed because a path does not exist at the revision.
func IsMissingPath(err error) bool {
	return stderrContains(err,
		"does not exist in",
		"exists on disk, but not in",
		"no such path",
		"no such file",
	)
}

func stderrContains(err error, subs ...string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, s := range subs {
		if strings.Contains(e.Stderr, s) {
			return true
		}
	}
	return false
}
