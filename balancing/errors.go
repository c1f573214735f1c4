package balancing

import "errors"

var (
	ErrInvalidPoolSize = errors.New("invalid pool size")
	ErrSizeMismatch    = errors.New("team sizes do not match pool size")
	ErrDuplicatePlayer = errors.New("player appears more than once in pool")
	ErrUnknownStrategy = errors.New("unknown balance strategy")
)
