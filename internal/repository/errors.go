package repository

import "errors"

// Common repository errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInsufficientBalance is returned when a coin or point movement
	// would drive a balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
