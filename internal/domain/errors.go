package domain

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrNoProviderAvailable = errors.New("no provider available")
	ErrConflict            = errors.New("concurrent modification")
)
