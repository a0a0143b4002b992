package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrWalletInactive    = errors.New("wallet is deactivated")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrAmountOutOfRange  = errors.New("amount outside allowed withdrawal range")
	ErrExcessiveRelease  = errors.New("release exceeds held balance")
)
