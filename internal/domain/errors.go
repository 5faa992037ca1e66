package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid search request")
	ErrProviderUnavailable = errors.New("place provider unavailable")
	ErrNotFound            = errors.New("not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }
