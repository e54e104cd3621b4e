package merge

import (
	"errors"
	"fmt"

	"merge-engine/core/wc"
)

var (
	// ErrLockContention is returned when another session holds the working-copy lock.
	ErrLockContention = wc.ErrLockContention

	// ErrNotVersioned is returned when the merge target is not a versioned node.
	ErrNotVersioned = errors.New("merge target is not under version control")

	// ErrNoSuchRevision is returned when the range names a revision the repository does not have.
	ErrNoSuchRevision = errors.New("no such revision")
)

// AncestryMismatchError reports that the two ends of a merge range do not
// belong to one line of history.
type AncestryMismatchError struct {
	Source string
	Left   int64
	Right  int64
	Reason string
}

func (e *AncestryMismatchError) Error() string {
	return fmt.Sprintf("%s@%d and %s@%d are not related: %s", e.Source, e.Left, e.Source, e.Right, e.Reason)
}
