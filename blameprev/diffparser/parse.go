// Package diffparser parses git diff patch output into per file diffs with hunk locations.
//
// Use ParseAll on output covering many files, or Parse on the patch of a single file. Hunks can
// be converted to linemap hunks to map lines between versions.
package diffparser

import (
	"bufio"
	"bytes"

	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/disciplesalmon/blame-previous/blameprev/linemap"
	"github.com/pkg/errors"
)

// Diff is change made to one file.
type Diff struct {
	PathPrev string
	Path     string
	IsBinary bool
	Hunks    []Hunk
}

func (d Diff) PathOrPrev() string {
	if d.Path != "" {
		return d.Path
	}
	return d.PathPrev
}

// IsNew is true when the file did not exist in the older version.
func (d Diff) IsNew() bool {
	return d.PathPrev == "" && d.Path != ""
}

// IsRename is true when the file was moved, with or without content changes.
func (d Diff) IsRename() bool {
	return d.PathPrev != "" && d.Path != "" && d.PathPrev != d.Path
}

// LineHunks returns hunk locations for line mapping.
func (d Diff) LineHunks() []linemap.Hunk {
	res := make([]linemap.Hunk, 0, len(d.Hunks))
	for _, h := range d.Hunks {
		res = append(res, h.LineHunk())
	}
	return res
}

// Hunk is a part of the diff describing change to a part of file.
type Hunk struct {
	Locations []HunkLocation
	Data      []byte
}

func (h Hunk) String() string {
	return string(h.Data)
}

// LineHunk returns the old and new ranges of a two way diff hunk.
func (h Hunk) LineHunk() linemap.Hunk {
	res := linemap.Hunk{}
	for _, l := range h.Locations {
		switch l.Op {
		case OpDel:
			res.OldStart, res.OldLines = l.Offset, l.Lines
		case OpAdd:
			res.NewStart, res.NewLines = l.Offset, l.Lines
		}
	}
	return res
}

// HunkLocation is the operation, offset and line modified.
type HunkLocation struct {
	Op     OpType
	Offset int
	Lines  int
}

// OpType is type of change performed by hunk.
type OpType rune

const (
	// OpAdd is adding piece of code
	OpAdd OpType = '+'
	// OpDel is deleting piece of code
	OpDel OpType = '-'
)

// Parse parses patch output for one file as printed by git diff.
func Parse(content []byte) (Diff, error) {
	p := newParser(content)
	return p.Parse()
}

// ParseAll splits output of git diff into per file patches and parses each.
func ParseAll(content []byte) (res []Diff, _ error) {
	for _, c := range Split(content) {
		d, err := Parse(c)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return
}

// Split returns the patch of every file in content. Text before the first diff declaration is
// skipped.
func Split(content []byte) (res [][]byte) {
	var cur []byte
	for len(content) > 0 {
		i := bytes.IndexByte(content, '\n')
		var line []byte
		if i == -1 {
			line, content = content, nil
		} else {
			line, content = content[:i+1], content[i+1:]
		}
		if startsWith(line, diffDeclPrefixNormal) {
			if len(cur) != 0 {
				res = append(res, cur)
			}
			cur = nil
		} else if cur == nil {
			continue
		}
		cur = append(cur, line...)
	}
	if len(cur) != 0 {
		res = append(res, cur)
	}
	return
}

type state int

const (
	stDecl state = iota
	stMeta
	stNewName
	stHeader
	stLines
)

// meta lines read between the declaration and "---"
type meta struct {
	renameFrom string
	renameTo   string
	newFile    bool
	deleted    bool
	binary     bool
}

func (m *meta) read(b []byte) (err error) {
	switch {
	case startsWith(b, "rename from "):
		m.renameFrom, err = gitexec.UnquotePath(string(b[len("rename from "):]))
	case startsWith(b, "rename to "):
		m.renameTo, err = gitexec.UnquotePath(string(b[len("rename to "):]))
	case startsWith(b, "new file "):
		m.newFile = true
	case startsWith(b, "deleted file "):
		m.deleted = true
	case startsWith(b, "Binary files "):
		m.binary = true
	}
	return err
}

type parser struct {
	content []byte
	state   state

	diff Diff
	meta meta

	// hunk being read
	locs  []HunkLocation
	lines []byte
}

func newParser(content []byte) *parser {
	return &parser{content: content}
}

func (p *parser) Parse() (res Diff, _ error) {
	if len(p.content) == 0 {
		return
	}

	scanner := bufio.NewScanner(bytes.NewReader(p.content))
	scanner.Buffer(nil, maxLine)
	for scanner.Scan() {
		if err := p.line(scanner.Bytes()); err != nil {
			return res, err
		}
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}
	p.endHunk()

	m := p.meta
	if m.newFile {
		p.diff.PathPrev = ""
	}
	if m.deleted {
		p.diff.Path = ""
		p.diff.Hunks = nil
	}
	if m.renameFrom != "" {
		if m.renameTo == "" {
			return res, errors.New("has rename from, but not rename to")
		}
		p.diff.PathPrev = m.renameFrom
		p.diff.Path = m.renameTo
	}
	p.diff.IsBinary = m.binary

	if p.diff.Path == "" && p.diff.PathPrev == "" {
		return res, errors.Errorf("no file name in diff %q", firstLine(p.content))
	}
	return p.diff, nil
}

func (p *parser) line(b []byte) error {
	switch p.state {
	case stDecl:
		p.state = stMeta
		var err error
		p.diff.PathPrev, p.diff.Path, err = parseDiffDecl(b)
		if err == errParseDiffDeclRenameWithSpaces {
			// names come from rename meta lines
			return nil
		}
		return err
	case stMeta:
		if startsWith(b, "---") {
			p.state = stNewName
			return nil
		}
		return p.meta.read(b)
	case stNewName:
		// +++ line
		p.state = stHeader
	case stHeader, stLines:
		if startsWith(b, "@@") {
			p.endHunk()
			locs, err := parseContext(b)
			if err != nil {
				return err
			}
			p.locs = locs
			p.state = stLines
			return nil
		}
		if p.state == stLines {
			p.lines = append(p.lines, b...)
			p.lines = append(p.lines, '\n')
		}
	default:
		return errors.Errorf("invalid parser state %v", p.state)
	}
	return nil
}

func (p *parser) endHunk() {
	if len(p.locs) != 0 {
		p.diff.Hunks = append(p.diff.Hunks, Hunk{Locations: p.locs, Data: p.lines})
	}
	p.locs = nil
	p.lines = nil
}
