package orderbook

import "github.com/cockroachdb/errors"

var (
	ErrInvalidSide   = errors.New("invalid order side")
	ErrInvalidKind   = errors.New("invalid order kind")
	ErrInvalidSize   = errors.New("order size must be positive")
	ErrInvalidPrice  = errors.New("order price must be positive")
	ErrInvalidOwner  = errors.New("order owner is required")
	ErrOrderNotFound = errors.New("order not found")
)

// IsInvalid reports whether err is a request-shape rejection.
func IsInvalid(err error) bool {
	return errors.IsAny(err, ErrInvalidSide, ErrInvalidKind, ErrInvalidSize, ErrInvalidPrice, ErrInvalidOwner)
}

// mustf panics when the book reaches a state matching cannot produce.
// Callers pass an UPPER_SNAKE tag as the leading word of the format. The
// panic value is an assertion failure carrying the stack.
func mustf(ok bool, format string, args ...any) {
	if !ok {
		panic(errors.AssertionFailedWithDepthf(1, format, args...))
	}
}
