package dispute

import "errors"

var (
	ErrDisputeNotFound        = errors.New("dispute not found")
	ErrInvalidParty           = errors.New("raised_against must be the payment's other party")
	ErrNotParty               = errors.New("account is not a party to this dispute")
	ErrDisputeAlreadyOpen     = errors.New("payment already has an open dispute")
	ErrAlreadyResolved        = errors.New("dispute already resolved")
	ErrInvalidStateTransition = errors.New("invalid dispute state transition")
	ErrInvalidResolution      = errors.New("unknown resolution")
	ErrInvalidRefundAmount    = errors.New("refund amount must be positive and within the payment amount")
)
