// Package linemap maps a line of a newer file version to the older version given the changes
// between them, either as zero-context diff hunks or as difflib opcodes.
//
// Lines outside changed regions map to the shifted old line with equal content. Inside a changed
// region new lines pair positionally with the removed lines, any surplus new line has no
// counterpart.
package linemap

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Hunk is a changed region in 1-based line numbers as printed in "@@ -OldStart,OldLines
// +NewStart,NewLines @@" of a diff produced with zero context lines.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// Mapping of one newer line.
type Mapping struct {
	Matched bool
	OldLine int
	Equal   bool
}

// FromHunks maps 1-based line of the newer file. Hunks must be sorted by NewStart and must not
// overlap, which is how git prints them.
func FromHunks(hunks []Hunk, line int) Mapping {
	delta := 0
	for _, h := range hunks {
		if h.NewLines == 0 {
			// pure deletion after line NewStart
			if line <= h.NewStart {
				break
			}
			delta -= h.OldLines
			continue
		}
		if line < h.NewStart {
			break
		}
		if line < h.NewStart+h.NewLines {
			k := line - h.NewStart
			if k < h.OldLines {
				return Mapping{Matched: true, OldLine: h.OldStart + k}
			}
			return Mapping{}
		}
		delta += h.NewLines - h.OldLines
	}
	return Mapping{Matched: true, OldLine: line - delta, Equal: true}
}

// FromOpCodes maps 1-based line of the newer file using opcodes of
// difflib.NewMatcher(old, new).GetOpCodes().
func FromOpCodes(ops []difflib.OpCode, line int) Mapping {
	j := line - 1
	for _, op := range ops {
		if j < op.J1 || j >= op.J2 {
			continue
		}
		k := j - op.J1
		switch op.Tag {
		case 'e':
			return Mapping{Matched: true, OldLine: op.I1 + k + 1, Equal: true}
		case 'r':
			if k < op.I2-op.I1 {
				return Mapping{Matched: true, OldLine: op.I1 + k + 1}
			}
			return Mapping{}
		case 'i':
			return Mapping{}
		}
	}
	return Mapping{}
}

// Split splits file content into lines without line terminators. A missing newline at the end of
// the last line does not make it a different line.
func Split(data string) []string {
	if data == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(data, "\n"), "\n")
}

// OpCodes returns difflib opcodes turning old lines into new lines. Junk heuristics are disabled
// so repeated lines like blank lines or braces still match.
func OpCodes(old, new []string) []difflib.OpCode {
	return difflib.NewMatcherWithJunk(old, new, false, nil).GetOpCodes()
}
