package auth

import "errors"

// Login and resolution failures. Unknown identity and wrong credential are
// a single value so the caller cannot distinguish them; the HTTP layer also
// presents ErrInactiveAccount identically to resist account enumeration.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account inactive")
	ErrNotEnrolled        = errors.New("student not enrolled in class")
	ErrClassInactive      = errors.New("class inactive")
	ErrRateLimited        = errors.New("too many attempts")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)
