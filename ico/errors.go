package ico

import "errors"

var (
	ErrIcoNotFound         = errors.New("ico not found")
	ErrIcoNotActive        = errors.New("ico not active")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSupplyExceeded      = errors.New("total supply exceeded")
	ErrInsufficientSupply  = errors.New("insufficient minted supply")
	ErrPaymentVerification = errors.New("payment verification failed")
	ErrInvalidConfig       = errors.New("invalid ico config")
)
