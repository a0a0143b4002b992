package payment

import "errors"

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrAmountTooLarge         = errors.New("amount exceeds platform maximum")
	ErrSelfPayment            = errors.New("payer and recipient must differ")
	ErrMissingPhoneNumber     = errors.New("payer has no registered phone number")
	ErrRetryNotAllowed        = errors.New("retry only permitted from failed or cancelled")
	ErrInvalidStateTransition = errors.New("operation not permitted in current state")
	ErrNotPayer               = errors.New("only the payer may perform this operation")
	ErrNotParty               = errors.New("not a party to this payment")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable, try again")
	ErrNotQueryable           = errors.New("payment has no gateway request to query")
)
