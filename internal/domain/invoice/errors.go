package invoice

import "errors"

var (
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvalidAmount          = errors.New("invoice amount must be positive")
	ErrNotIssuer              = errors.New("only the issuing artisan may perform this action")
	ErrNotParty               = errors.New("account is not a party to this invoice")
	ErrInvalidStateTransition = errors.New("invalid invoice state transition")
)
