package framework

import (
	"errors"
	"strings"
)

// ErrForcedExit is returned by Runner.Wait when a second stop is requested.
var ErrForcedExit = errors.New("forced exit")

// AggregatedError collects errors from multiple runners.
type AggregatedError []error

// Error implements error.
func (e AggregatedError) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("multiple errors:")
	for _, err := range e {
		sb.WriteString("\n  ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Add appends non-nil errors.
func (e *AggregatedError) Add(errs ...error) {
	for _, err := range errs {
		if err != nil {
			*e = append(*e, err)
		}
	}
}

// Err returns nil if nothing was collected.
func (e AggregatedError) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
