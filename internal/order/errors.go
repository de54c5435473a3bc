package order

import "errors"

var (
	ErrNotFound   = errors.New("order not found")
	ErrValidation = errors.New("invalid order update")
	ErrStorage    = errors.New("order store unavailable")
)
