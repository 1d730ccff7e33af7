package review

import (
	"errors"
	"fmt"
)

// ErrUnknownCard is returned when a card ID is not in the session.
var ErrUnknownCard = errors.New("unknown card")

// CollaboratorError wraps a failure of something outside the scheduler:
// the progress store or the question generator. The session's in-memory
// state is unaffected by it, so the caller may retry.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// IsCollaborator reports whether err came from a collaborator.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
