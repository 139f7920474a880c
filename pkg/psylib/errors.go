package psylib

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedTask    = errors.New("task is neither a callable nor a scheduler")
	ErrSchedulerRunning = errors.New("scheduler is already running")

	ErrResourceNameEmpty  = errors.New("resource name cannot be empty")
	ErrResourceNotFound   = errors.New("resource you are asking for is not registered")
	ErrResourceNotReady   = errors.New("resource you are asking for is not downloaded yet")
	ErrResourceWrongState = errors.New("resource is already downloading or downloaded")

	ErrManagerErrored = errors.New("resource manager is in error state, reset it before issuing new operations")
	ErrNoSurveyClient = errors.New("no survey client configured")

	ErrUnsupportedResourceScheme = errors.New("unsupported resource location scheme")
)

// ResourceError is a structured resource-pipeline error carrying the
// component that raised it, human-readable context (usually naming the
// resource), and the underlying cause. Use errors.Is/As to inspect it.
type ResourceError struct {
	// Origin identifies the component that raised the error
	// (e.g. "generic-loader", "survey-loader", "GetResource").
	Origin string
	// Context describes what was being done when the error occurred.
	Context string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface. Format: "origin: context: cause".
func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Origin, e.Context, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Origin, e.Context)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chaining.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

func newResourceError(origin, context string, err error) *ResourceError {
	return &ResourceError{Origin: origin, Context: context, Err: err}
}
