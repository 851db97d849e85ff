package provenance

import (
	"context"
	"fmt"
)

// Revision identifies a point in version history. For git backends it is the full commit hash.
type Revision string

// Short returns the first 8 characters of the revision, useful in logs.
func (r Revision) Short() string {
	if len(r) > 8 {
		return string(r[:8])
	}
	return string(r)
}

// FileLocator identifies one version of one file.
type FileLocator struct {
	Path     string
	Revision Revision
}

func (f FileLocator) String() string {
	return f.Revision.Short() + ":" + f.Path
}

// LineCursor points at a 1-based line of a file version.
type LineCursor struct {
	File FileLocator
	Line int
}

func (c LineCursor) String() string {
	return fmt.Sprintf("%v#%d", c.File, c.Line)
}

// Correspondence is the answer of a LineDiffer for one line of the newer file version.
// When Matched is false the line was introduced in the newer version.
type Correspondence struct {
	Matched bool
	// OldPath is the path of the file in the older version. Differs from the newer path on rename.
	OldPath      string
	OldLine      int
	ContentEqual bool
}

// Unmatched is the correspondence of a line that has no counterpart in the older version.
var Unmatched = Correspondence{}

// BlameEntry is one line of a whole-file blame.
type BlameEntry struct {
	Line     int
	Revision Revision
	// OrigPath and OrigLine locate the line in Revision.
	OrigPath string
	OrigLine int
}

// RevisionGraph returns parents of a revision in stable order.
type RevisionGraph interface {
	ParentsOf(ctx context.Context, rev Revision) ([]Revision, error)
}

// TopoRanker is optionally implemented by a RevisionGraph. Lower rank means newer, every commit
// has a lower rank than all of its ancestors.
type TopoRanker interface {
	TopoRank(ctx context.Context, rev Revision) (int, error)
}

// LineDiffer maps a line of newer to the corresponding line of older.
// older.Path is a hint, renames are resolved by the differ and reported in Correspondence.OldPath.
type LineDiffer interface {
	Correspond(ctx context.Context, newer, older FileLocator, line int) (Correspondence, error)
}

// BlameProvider validates cursors.
type BlameProvider interface {
	LineCountAt(ctx context.Context, file FileLocator) (int, error)
}

// BlameSeeder is optionally implemented by a BlameProvider to let the walker skip revisions.
type BlameSeeder interface {
	BlameAt(ctx context.Context, file FileLocator) ([]BlameEntry, error)
}

// Outcome is the kind of successful walk result.
type Outcome int

const (
	// Changed means Result.Cursor points at the previous change.
	Changed Outcome = iota + 1
	// NoPreviousChange means history was exhausted. It is not an error.
	NoPreviousChange
)

func (o Outcome) String() string {
	switch o {
	case Changed:
		return "changed"
	case NoPreviousChange:
		return "no previous change"
	}
	return "unknown"
}

// Result of FindPreviousChange.
type Result struct {
	Outcome Outcome
	// Cursor is set only when Outcome is Changed.
	Cursor LineCursor
	// Visited is the number of revisions diffed against their parents.
	Visited int
}
