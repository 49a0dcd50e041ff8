package models

import "fmt"

// NotFoundError indicates a missing patient or examination record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ModelUnavailableError indicates that no candidate model could produce a
// prediction. This is a deployment problem, not a bad request.
type ModelUnavailableError struct {
	Space  string
	Reason string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("no model available for space %q: %s", e.Space, e.Reason)
}

// FeatureMismatchError indicates an input vector that does not match the
// feature schema the space's scaler was fitted on.
type FeatureMismatchError struct {
	Space   string
	Missing []string
	Extra   []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("feature mismatch for space %q: missing %v, unexpected %v", e.Space, e.Missing, e.Extra)
}

// InsufficientDataError is the retrain guard: not enough training-ready
// examinations to justify a retrain. It is a skip, not a failure.
type InsufficientDataError struct {
	Space string
	Ready int
	Min   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("space %q has %d training-ready examinations, minimum is %d", e.Space, e.Ready, e.Min)
}
