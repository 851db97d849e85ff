package blameprev

import (
	"context"
	"fmt"
	"time"

	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/hashicorp/go-multierror"
)

// ValidateStats summarizes a Validate run.
type ValidateStats struct {
	Lines   int
	Checked int
	// Skipped lines were last changed at the validated revision itself.
	Skipped int
}

// Validate compares walker results with git blame for every line of the file. For a line not
// changed at loc.Revision both must name the same commit and original line. Every mismatch is
// returned in a multierror.
func (s *BlamePrev) Validate(ctx context.Context, loc provenance.FileLocator) (stats ValidateStats, _ error) {
	start := time.Now()
	bl, err := s.blamer.Run(ctx, loc)
	if err != nil {
		return stats, err
	}
	stats.Lines = len(bl.Lines)
	var rerr *multierror.Error
	for i, l := range bl.Lines {
		line := i + 1
		if provenance.Revision(l.CommitHash) == loc.Revision {
			stats.Skipped++
			continue
		}
		stats.Checked++
		res, err := s.FindPreviousChange(ctx, provenance.LineCursor{File: loc, Line: line})
		if err != nil {
			return stats, err
		}
		want := provenance.LineCursor{
			File: provenance.FileLocator{Path: l.OrigPath, Revision: provenance.Revision(l.CommitHash)},
			Line: l.OrigLine,
		}
		parents, err := s.graph.ParentsOf(ctx, want.File.Revision)
		if err != nil {
			return stats, err
		}
		if len(parents) == 0 && !s.opts.AttributeRoot {
			if res.Outcome != provenance.NoPreviousChange {
				rerr = multierror.Append(rerr, fmt.Errorf("line %d %q: walker %v, blame root commit %v", line, l.Content, res.Cursor, want))
			}
			continue
		}
		if res.Outcome != provenance.Changed || res.Cursor != want {
			rerr = multierror.Append(rerr, fmt.Errorf("line %d %q: walker %v %v, blame %v", line, l.Content, res.Outcome, res.Cursor, want))
		}
	}
	s.opts.Logger.Info("blameprev: validated file", "file", loc, "lines", stats.Lines, "checked", stats.Checked, "d", time.Since(start))
	return stats, rerr.ErrorOrNil()
}
