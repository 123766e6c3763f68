package postgres

import "errors"

// Sentinel error taxonomy per the error-handling design: every repository
// method returns one of these (or wraps one via fmt.Errorf("%w", ...)) so
// callers can branch with errors.Is instead of parsing driver-specific
// error strings.
var (
	ErrNotFound           = errors.New("postgres: not found")
	ErrConflict           = errors.New("postgres: conflict")
	ErrValidation         = errors.New("postgres: validation")
	ErrPreconditionFailed = errors.New("postgres: precondition failed")
)
