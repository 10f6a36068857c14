package routing

import "errors"

var (
	// ErrUnknownModel is returned when a model id has no descriptor.
	ErrUnknownModel = errors.New("unknown model")
	// ErrBackendPanic wraps a panic recovered from a backend call.
	ErrBackendPanic = errors.New("backend panicked")
	// ErrRoutingFailed wraps every error returned by Router.Route.
	ErrRoutingFailed = errors.New("routing failed")
)
