package gitblame

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type line struct {
	CommitHash string
	OrigLine   int
	FinalLine  int
	Content    string
	Meta       map[string]string
}

// parseOutput parses git blame --porcelain output. Commit metadata is printed only the first time
// a commit appears, later lines of the same commit get the saved metadata.
func parseOutput(data string) (res []line, _ error) {
	lines := strings.Split(data, "\n")
	metasByCommit := map[string]map[string]string{}
	for i := 0; i < len(lines); {
		fl := lines[i]
		if fl == "" && i == len(lines)-1 {
			// skip last empty line
			break
		}
		parts := strings.Split(fl, " ")
		if len(parts) < 3 {
			return nil, errors.Errorf("gitblame: invalid header line %q", fl)
		}
		rl := line{}
		rl.CommitHash = parts[0]
		var err error
		rl.OrigLine, err = strconv.Atoi(parts[1])
		if err != nil {
			return nil, errors.Errorf("gitblame: invalid header line %q", fl)
		}
		rl.FinalLine, err = strconv.Atoi(parts[2])
		if err != nil {
			return nil, errors.Errorf("gitblame: invalid header line %q", fl)
		}
		rl.Meta = map[string]string{}
		for {
			i++
			if i >= len(lines) {
				return nil, errors.New("gitblame: after header we need the content line")
			}
			l := lines[i]
			if len(l) == 0 || l[0] != '\t' {
				parts := strings.SplitN(l, " ", 2)
				if len(parts) == 2 {
					rl.Meta[parts[0]] = parts[1]
				} else {
					// i.e. boundary
					rl.Meta[l] = ""
				}
			} else {
				rl.Content = l[1:]
				break
			}
		}
		prev := metasByCommit[rl.CommitHash]
		if prev == nil {
			metasByCommit[rl.CommitHash] = rl.Meta
		} else {
			// commits touching more than one path repeat only the filename
			for k, v := range prev {
				if _, ok := rl.Meta[k]; !ok {
					rl.Meta[k] = v
				}
			}
		}
		res = append(res, rl)
		i++
	}
	return res, nil
}
