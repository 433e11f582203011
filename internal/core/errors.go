package core

import "errors"

// Error kinds shared across packages. Wrap with fmt.Errorf("...: %w", Err*)
// and test with errors.Is.
var (
	ErrConfigMissing       = errors.New("required configuration missing")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrParseFailed         = errors.New("cannot parse external response")
	ErrNotFound            = errors.New("not found")
	ErrStaleOrExpired      = errors.New("record evicted or expired")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrTimeout             = errors.New("deadline exceeded")
	ErrDependencyDown      = errors.New("dependency unreachable")
)
