package model

import "errors"

var (
	// ErrNotValid is returned when a resource or request is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrDenied is returned when a request is rejected by policy or validation
	// before anything is executed.
	ErrDenied = errors.New("denied")
	// ErrUnavailable is returned when an executor cannot currently run anything.
	ErrUnavailable = errors.New("unavailable")
)
