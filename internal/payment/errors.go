package payment

import (
	"errors"

	"ms-storefront/internal/payment/token"
)

var (
	ErrInvalidToken    = token.ErrInvalidToken
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPayable = errors.New("order payment already settled")
	ErrStorage         = errors.New("payment store unavailable")
)
