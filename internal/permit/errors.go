package permit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested permit, checklist, extension or
// stop-work record does not exist in the underlying storage.
var ErrNotFound = errors.New("permit: not found")

// InvalidStateError is returned when the requested transition is not legal
// from the entity's current status. The caller is expected to refresh and
// re-decide rather than retry.
type InvalidStateError struct {
	Entity    string
	ID        string
	Status    string
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("permit: cannot %s %s %s in status %s", e.Operation, e.Entity, e.ID, e.Status)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// PreconditionError is returned when a transition is legal from the current
// status but a required checklist gate is unmet. Unchecked carries the item
// IDs still open so the caller can resolve them.
type PreconditionError struct {
	PermitID      string
	ChecklistType ChecklistType
	Unchecked     []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("permit: %s checklist for permit %s not satisfied (open items: %s)",
		e.ChecklistType, e.PermitID, strings.Join(e.Unchecked, ", "))
}

// IsPreconditionFailed reports whether err is a PreconditionError.
func IsPreconditionFailed(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// ValidationError is returned for malformed input, before any state mutation
// is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("permit: invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
