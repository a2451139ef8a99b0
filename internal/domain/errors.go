package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("permission denied")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("already exists")
)

var (
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrInvalidState)
	ErrAlreadyClaimed    = fmt.Errorf("%w: user has already claimed this coupon", ErrInvalidState)
	ErrSoldOut           = fmt.Errorf("%w: coupon is fully claimed", ErrInvalidState)
	ErrCouponIneligible  = fmt.Errorf("%w: coupon cannot be used", ErrInvalidState)
	ErrIllegalTransition = fmt.Errorf("%w: order status does not allow this operation", ErrInvalidState)
)

// Error attaches a caller-facing message to one of the sentinel kinds above.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Errorf(kind error, format string, args ...any) error {
	return &Error{Err: kind, Message: fmt.Sprintf(format, args...)}
}

// Message returns the text that is safe to show to API callers.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}
