package scoring

import "fmt"

// MinHistoryDays is the minimum observed history required to score a user.
const MinHistoryDays = 90

// InsufficientHistoryError reports that the user's transaction history is
// too short to score. Callers persist a partial audit and surface a
// user-visible "not enough history" outcome; the run is not retried.
type InsufficientHistoryError struct {
	HistoryDays int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: %d days observed, %d required", e.HistoryDays, MinHistoryDays)
}

// ComputationError reports an internal arithmetic or invariant failure in
// a named engine stage. It surfaces as a typed result, never a panic.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("scoring computation failed in %s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
