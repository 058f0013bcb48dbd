package apperr

import "errors"

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnavailable  = errors.New("service unavailable")
)

// IsAuth reports whether err is the authentication failure class.
// Mutating calls require a resolved identity; its absence is always an error.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
