// Package testutil builds throw-away git repositories for tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Repo is a git repository in a temporary directory, removed when the test ends.
type Repo struct {
	t   testing.TB
	Dir string
	// commits made so far, used to give every commit a distinct date
	n int
}

// NewRepo creates an empty repository on branch main. Skips the test when git is not installed.
func NewRepo(t testing.TB) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	s := &Repo{t: t}
	s.Dir = filepath.Join(t.TempDir(), "repo")
	if err := os.MkdirAll(s.Dir, 0777); err != nil {
		t.Fatal(err)
	}
	s.Git("init", "-q")
	s.Git("symbolic-ref", "HEAD", "refs/heads/main")
	s.Git("config", "user.email", "test@example.com")
	s.Git("config", "user.name", "Test")
	s.Git("config", "commit.gpgsign", "false")
	return s
}

// Git runs git in the repository and returns trimmed stdout. Fails the test on error.
func (s *Repo) Git(args ...string) string {
	s.t.Helper()
	date := fmt.Sprintf("2019-01-01T00:%02d:%02dZ", s.n/60, s.n%60)
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	c := exec.Command("git", args...)
	c.Dir = s.Dir
	c.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE="+date,
		"GIT_COMMITTER_DATE="+date,
		"GIT_CONFIG_NOSYSTEM=1",
	)
	c.Stdout = stdout
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		s.t.Fatalf("git %v failed: %v\n%v", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String())
}

// Write creates or replaces a file.
func (s *Repo) Write(path string, content string) {
	s.t.Helper()
	loc := filepath.Join(s.Dir, path)
	if err := os.MkdirAll(filepath.Dir(loc), 0777); err != nil {
		s.t.Fatal(err)
	}
	if err := os.WriteFile(loc, []byte(content), 0666); err != nil {
		s.t.Fatal(err)
	}
}

// Remove deletes a file from the working tree.
func (s *Repo) Remove(path string) {
	s.t.Helper()
	if err := os.Remove(filepath.Join(s.Dir, path)); err != nil {
		s.t.Fatal(err)
	}
}

// Move renames a file in the index and working tree.
func (s *Repo) Move(from, to string) {
	s.t.Helper()
	s.Git("mv", from, to)
}

// Commit stages everything and commits, returning the full sha.
func (s *Repo) Commit(msg string) string {
	s.t.Helper()
	s.n++
	s.Git("add", "-A")
	s.Git("commit", "-q", "--allow-empty", "-m", msg)
	return s.Git("rev-parse", "HEAD")
}

// Branch creates branch name at HEAD and checks it out.
func (s *Repo) Branch(name string) {
	s.t.Helper()
	s.Git("checkout", "-q", "-b", name)
}

// Checkout switches to an existing branch or commit.
func (s *Repo) Checkout(ref string) {
	s.t.Helper()
	s.Git("checkout", "-q", ref)
}

// Merge records a merge of branch into HEAD. The resulting tree is whatever files contains on top
// of the current tree, so any merge result (including one that matches no parent) can be built.
func (s *Repo) Merge(branch string, msg string, files map[string]string) string {
	s.t.Helper()
	s.Git("merge", "-q", "--no-ff", "--no-commit", "-s", "ours", branch)
	for p, c := range files {
		s.Write(p, c)
	}
	return s.Commit(msg)
}

// Lines joins lines with a trailing newline.
func Lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}
