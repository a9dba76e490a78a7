package authz

import "errors"

// Common authorization errors.
var (
	// ErrInvalidPolicy indicates that a declared policy is malformed.
	ErrInvalidPolicy = errors.New("invalid authorization policy")
)
