package contract

import "errors"

// Error categories for programmatic handling by calling layers. Every failure
// returned by a contract operation wraps exactly one of these, with a message
// naming the violated condition; match with errors.Is.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrConfiguration = errors.New("configuration error")
)
