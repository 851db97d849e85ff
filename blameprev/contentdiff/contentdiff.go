// Package contentdiff implements provenance.LineDiffer by matching file contents in process with
// difflib instead of running git diff for every hop.
package contentdiff

import (
	"context"

	"github.com/disciplesalmon/blame-previous/blameprev/linemap"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
	"gopkg.in/src-d/enry.v1"
)

// RenameSource finds the path a file had in an older revision.
type RenameSource interface {
	RenameSource(ctx context.Context, newer provenance.FileLocator, older provenance.Revision) (string, bool, error)
}

// BlobReader reads file content at a revision.
type BlobReader interface {
	Read(ctx context.Context, loc provenance.FileLocator) ([]byte, error)
}

type Opts struct {
	Blobs BlobReader
	// Renames is asked when the file does not exist under the same path in the older revision.
	// Renames are not followed when nil.
	Renames RenameSource
	Logger  logger.Logger
}

type Differ struct {
	opts Opts
}

func New(opts Opts) *Differ {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	s := &Differ{}
	s.opts = opts
	return s
}

func (s *Differ) Correspond(ctx context.Context, newer, older provenance.FileLocator, line int) (provenance.Correspondence, error) {
	newData, err := s.opts.Blobs.Read(ctx, newer)
	if err != nil {
		return provenance.Correspondence{}, err
	}
	oldPath := newer.Path
	oldData, err := s.opts.Blobs.Read(ctx, provenance.FileLocator{Path: oldPath, Revision: older.Revision})
	if errors.Is(err, provenance.ErrFileNotFound) {
		if s.opts.Renames == nil {
			return provenance.Unmatched, nil
		}
		var ok bool
		oldPath, ok, err = s.opts.Renames.RenameSource(ctx, newer, older.Revision)
		if err != nil {
			return provenance.Correspondence{}, err
		}
		if !ok {
			return provenance.Unmatched, nil
		}
		s.opts.Logger.Debug("contentdiff: following rename", "from", oldPath, "to", newer.Path, "rev", newer.Revision.Short())
		oldData, err = s.opts.Blobs.Read(ctx, provenance.FileLocator{Path: oldPath, Revision: older.Revision})
	}
	if err != nil {
		return provenance.Correspondence{}, err
	}
	if enry.IsBinary(newData) || enry.IsBinary(oldData) {
		return provenance.Correspondence{}, errors.Wrapf(provenance.ErrDiffUnavailable, "binary file %v", newer)
	}

	ops := linemap.OpCodes(linemap.Split(string(oldData)), linemap.Split(string(newData)))
	m := linemap.FromOpCodes(ops, line)
	if !m.Matched {
		return provenance.Unmatched, nil
	}
	return provenance.Correspondence{Matched: true, OldPath: oldPath, OldLine: m.OldLine, ContentEqual: m.Equal}, nil
}
