package cmdutils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
)

// EnableProfiling starts a profile of the given kind, one of cpu, mem, trace, block or mutex.
// Call onEnd before exiting to write the profile.
func EnableProfiling(kind string) (onEnd func(), _ error) {
	var mode func(*profile.Profile)
	switch kind {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "trace":
		mode = profile.TraceProfile
	case "block":
		mode = profile.BlockProfile
	case "mutex":
		mode = profile.MutexProfile
	default:
		return nil, errors.Errorf("unexpected profile: %v, use one of cpu, mem, trace, block or mutex", kind)
	}
	dir, err := os.MkdirTemp("", "blameprev-profile")
	if err != nil {
		return nil, err
	}
	stop := profile.Start(mode, profile.ProfilePath(dir), profile.Quiet).Stop
	onEnd = func() {
		stop()
		fn := filepath.Join(dir, kind+".pprof")
		fmt.Fprintf(os.Stderr, "to view profile, run `go tool pprof --pdf %s`\n", fn)
	}
	return onEnd, nil
}
