// Package cursorstore keeps the stack of cursors visited by the command line tool, so that a later
// invocation can continue from or go back to an earlier result. The walker itself is stateless.
//
// The stack is a gzip compressed msgpack file written atomically.
package cursorstore

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

const fileName = "cursors"

// Store is safe for concurrent use within one process.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New stores the stack in dir, created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) loc() string {
	return filepath.Join(s.dir, fileName)
}

// Entries returns the stack, bottom first.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Push adds e on top.
func (s *Store) Push(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(res, e))
}

// Top returns the last pushed entry. ok is false for an empty stack.
func (s *Store) Top() (_ Entry, ok bool, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.read()
	if err != nil || len(res) == 0 {
		return Entry{}, false, err
	}
	return res[len(res)-1], true, nil
}

// Pop removes and returns the top entry.
func (s *Store) Pop() (_ Entry, ok bool, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.read()
	if err != nil || len(res) == 0 {
		return Entry{}, false, err
	}
	top := res[len(res)-1]
	if err := s.write(res[:len(res)-1]); err != nil {
		return Entry{}, false, err
	}
	return top, true, nil
}

// Clear empties the stack.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.loc())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) read() (res []Entry, rerr error) {
	f, err := os.Open(s.loc())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", s.loc())
	}
	defer gr.Close()
	r := msgp.NewReader(gr)
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", s.loc())
	}
	res = make([]Entry, n)
	for i := range res {
		if err := res[i].DecodeMsg(r); err != nil {
			return nil, errors.Wrapf(err, "reading %v", s.loc())
		}
	}
	return res, nil
}

func (s *Store) write(entries []Entry) error {
	err := os.MkdirAll(s.dir, 0777)
	if err != nil {
		return err
	}
	tmp := s.loc() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	wr := msgp.NewWriter(gw)
	err = wr.WriteArrayHeader(uint32(len(entries)))
	if err != nil {
		return err
	}
	for i := range entries {
		if err := entries[i].EncodeMsg(wr); err != nil {
			return err
		}
	}
	err = wr.Flush()
	if err != nil {
		return err
	}
	err = gw.Close()
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, s.loc())
}
