package dataflow

import "fmt"

// UnableToSatisfyQueryError is returned when a query spec cannot be
// satisfied by the semantic manifest: unknown elements, unjoinable
// dimensions, or unsupported combinations.
type UnableToSatisfyQueryError struct {
	Reason string
}

func (e *UnableToSatisfyQueryError) Error() string {
	return "unable to satisfy query: " + e.Reason
}

func unsatisfiable(format string, args ...any) error {
	return &UnableToSatisfyQueryError{Reason: fmt.Sprintf(format, args...)}
}
