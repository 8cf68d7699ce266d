package order

import "errors"

var (
	// ErrInvalidInput marks client-correctable input problems.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence marks order store failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrGateway marks payment gateway failures.
	ErrGateway  = errors.New("gateway failure")
	ErrNotFound = errors.New("order not found")
)
