package sync

import (
	"fmt"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
)

// UnavailableError reports that the remote account cannot be used. It is the
// one failure class that disables syncing and surfaces a user prompt; every
// other failure just fails the run.
type UnavailableError struct {
	Status remote.Availability
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote account unusable: %s", e.Status)
	}
	return fmt.Sprintf("remote account unusable (%s): %v", e.Status, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// CorruptionError reports a structural invariant broken in the data itself,
// such as a note record whose owner cannot be found or a record name that
// does not parse. Retrying cannot fix it, so the run fails hard.
type CorruptionError struct {
	RecordName string
	Err        error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt sync data for %s: %v", e.RecordName, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }
