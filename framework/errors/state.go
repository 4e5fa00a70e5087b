package errors

import "fmt"

// Reason tells apart the lifecycle violations behind ErrIllegalState.
type Reason string

const (
	ReasonClosed         Reason = "closed"
	ReasonNotInitialized Reason = "not-initialized"
	ReasonNoFactory      Reason = "no-factory"
	ReasonNotReloadable  Reason = "not-reloadable"
	ReasonRefreshing     Reason = "refresh-in-progress"
)

// StateError reports a capability call made in a state that does not allow it.
type StateError struct {
	Context   string
	State     string
	Operation string
	Reason    Reason
}

func (e *StateError) Error() string {
	return fmt.Sprintf("context %s: %s not allowed while %s (%s)", e.Context, e.Operation, e.State, e.Reason)
}

// Is makes errors.Is(err, ErrIllegalState) hold for every StateError.
func (e *StateError) Is(target error) bool { return target == ErrIllegalState }

// ReasonOf extracts the Reason from a StateError chain, or "" when err is not one.
func ReasonOf(err error) Reason {
	var se *StateError
	if As(err, &se) {
		return se.Reason
	}
	return ""
}
