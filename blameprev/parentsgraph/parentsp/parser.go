// Package parentsp parses git log output in --pretty=format:%H@%P format.
package parentsp

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
)

type Parser struct {
	r io.Reader
}

func New(r io.Reader) *Parser {
	p := &Parser{}
	p.r = r
	return p
}

// Entry is one commit line.
type Entry struct {
	Commit  string
	Parents []string
}

// Log keeps commits in the order git printed them.
type Log []Entry

type Parents map[string][]string

// Parents returns the commit to parents map.
func (s Log) Parents() Parents {
	res := Parents{}
	for _, e := range s {
		res[e.Commit] = e.Parents
	}
	return res
}

const mb = 1000 * 1000
const maxLine = 1 * mb

func (s *Parser) Run() (Log, error) {
	var res Log

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(nil, maxLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		parts := bytes.SplitN(line, []byte("@"), 2)
		if len(parts) != 2 || len(parts[0]) == 0 {
			return res, errors.Errorf("parentsp: invalid line %q", line)
		}

		commit := string(parts[0])
		var parents []string
		if len(parts[1]) != 0 {
			parents = strings.Split(string(parts[1]), " ")
		}
		res = append(res, Entry{Commit: commit, Parents: parents})
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}
	return res, nil
}
