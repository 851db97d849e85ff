package diffparser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/disciplesalmon/blame-previous/blameprev/gitexec"
	"github.com/pkg/errors"
)

// maxLine is the longest diff line accepted by the scanner.
const maxLine = 10 * 1000 * 1000

func startsWith(b []byte, prefix string) bool {
	return bytes.HasPrefix(b, []byte(prefix))
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i != -1 {
		return b[:i]
	}
	return b
}

// parseContext parses a hunk header such as "@@ -3,2 +2,0 @@ func main() {". A range without
// count, as in "@@ -3 +3 @@", has one line. Anything after the closing marker is ignored.
func parseContext(header []byte) ([]HunkLocation, error) {
	invalid := func(reason string) ([]HunkLocation, error) {
		return nil, errors.Errorf("invalid hunk header %q: %v", header, reason)
	}
	const marker = "@@"
	if !startsWith(header, marker) {
		return invalid("no opening marker")
	}
	rest := header[len(marker):]
	end := bytes.Index(rest, []byte(marker))
	if end == -1 {
		return invalid("no closing marker")
	}
	fields := bytes.Fields(rest[:end])
	if len(fields) == 0 {
		return invalid("no ranges")
	}
	res := make([]HunkLocation, 0, len(fields))
	for _, f := range fields {
		loc, err := parseRange(f)
		if err != nil {
			return invalid(err.Error())
		}
		res = append(res, loc)
	}
	return res, nil
}

// parseRange parses "-offset,lines" or "+offset,lines". ",lines" is optional.
func parseRange(f []byte) (res HunkLocation, _ error) {
	if len(f) < 2 {
		return res, errors.Errorf("range %q too short", f)
	}
	switch f[0] {
	case '-':
		res.Op = OpDel
	case '+':
		res.Op = OpAdd
	default:
		return res, errors.Errorf("range %q has invalid op", f)
	}
	offset, lines := f[1:], []byte("1")
	if i := bytes.IndexByte(offset, ','); i != -1 {
		offset, lines = offset[:i], offset[i+1:]
	}
	var err error
	if res.Offset, err = strconv.Atoi(string(offset)); err != nil {
		return res, errors.Errorf("range %q has invalid offset", f)
	}
	if res.Lines, err = strconv.Atoi(string(lines)); err != nil {
		return res, errors.Errorf("range %q has invalid line count", f)
	}
	return res, nil
}

const diffDeclPrefixNormal = "diff --git "
const diffDeclPrefixMerge = "diff --combined "

var errParseDiffDeclRenameWithSpaces = errors.New("can't parse diff declaration containing rename with spaces, extract data from rename line instead")

// parseDiffDecl returns both paths from "diff --git a/<from> b/<to>". Either path may be C quoted
// by git. When unquoted paths contain spaces the line is ambiguous unless both paths are equal,
// otherwise errParseDiffDeclRenameWithSpaces is returned and the caller reads the rename meta lines.
func parseDiffDecl(decl []byte) (fromPath string, toPath string, _ error) {
	if len(decl) == 0 {
		return "", "", errors.New("empty diff declaration")
	}
	if startsWith(decl, diffDeclPrefixMerge) {
		return "", "", errors.Errorf("combined merge diffs are not supported %s", decl)
	}
	if !startsWith(decl, diffDeclPrefixNormal) {
		return "", "", errors.Errorf("invalid prefix for diff declaration %s", decl)
	}
	paths := decl[len(diffDeclPrefixNormal):]
	if bytes.IndexByte(paths, '"') != -1 {
		return parseQuotedDecl(decl, paths)
	}
	switch bytes.Count(paths, []byte(" ")) {
	case 0:
		return "", "", errors.Errorf("no space between paths in diff declaration %s", decl)
	case 1:
		i := bytes.IndexByte(paths, ' ')
		return declPaths(decl, string(paths[:i]), string(paths[i+1:]))
	}
	// "a/<p> b/<p>" has odd length with the separating space in the middle
	mid := len(paths) / 2
	if len(paths)%2 != 1 || paths[mid] != ' ' || !startsWith(paths, "a/") || !startsWith(paths[mid+1:], "b/") {
		return "", "", errParseDiffDeclRenameWithSpaces
	}
	fromPath = string(paths[2:mid])
	toPath = string(paths[mid+3:])
	if fromPath != toPath {
		return "", "", errParseDiffDeclRenameWithSpaces
	}
	return fromPath, toPath, nil
}

// parseQuotedDecl handles declarations where at least one path is quoted. A path without quotes
// contains no quote character, so the separator is found next to the quotes.
func parseQuotedDecl(decl, paths []byte) (fromPath string, toPath string, _ error) {
	var from, to []byte
	if paths[0] == '"' {
		end := closingQuote(paths)
		if end == -1 || end+2 > len(paths) || paths[end+1] != ' ' {
			return "", "", errors.Errorf("invalid quoted path in diff declaration %s", decl)
		}
		from, to = paths[:end+1], paths[end+2:]
	} else {
		i := bytes.Index(paths, []byte(` "`))
		if i == -1 {
			return "", "", errors.Errorf("invalid quoted path in diff declaration %s", decl)
		}
		from, to = paths[:i], paths[i+1:]
	}
	f, err := gitexec.UnquotePath(string(from))
	if err != nil {
		return "", "", err
	}
	t, err := gitexec.UnquotePath(string(to))
	if err != nil {
		return "", "", err
	}
	return declPaths(decl, f, t)
}

// closingQuote returns the index of the quote ending the quoted string at the start of b.
func closingQuote(b []byte) int {
	for i := 1; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func declPaths(decl []byte, from, to string) (string, string, error) {
	if !strings.HasPrefix(from, "a/") || !strings.HasPrefix(to, "b/") || len(from) == 2 || len(to) == 2 {
		return "", "", errors.Errorf("invalid paths in diff declaration %s", decl)
	}
	return from[2:], to[2:], nil
}
