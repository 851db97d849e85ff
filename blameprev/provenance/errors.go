package provenance

import "github.com/pkg/errors"

// Errors reported by FindPreviousChange. Collaborators wrap them, check with errors.Is.
var (
	ErrLineOutOfRange       = errors.New("line out of range")
	ErrFileNotFound         = errors.New("file not found")
	ErrRevisionUnresolvable = errors.New("revision unresolvable")
	ErrDiffUnavailable      = errors.New("diff unavailable")
)

// IsRetryable reports whether the caller may retry after refreshing repository state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRevisionUnresolvable)
}
