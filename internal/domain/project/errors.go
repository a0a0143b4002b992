package project

import "errors"

var (
	ErrProjectNotFound        = errors.New("project not found")
	ErrBidNotFound            = errors.New("bid not found")
	ErrMilestoneNotFound      = errors.New("milestone not found")
	ErrInvalidBudget          = errors.New("budget must satisfy 0 < min <= max")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrNotOwner               = errors.New("not the project owner")
	ErrNotAssignedArtisan     = errors.New("not the assigned artisan")
	ErrInvalidStateTransition = errors.New("operation not permitted in current state")
	ErrDuplicateBid           = errors.New("artisan already bid on this project")
	ErrOwnProjectBid          = errors.New("cannot bid on own project")
	ErrMilestoneMismatch      = errors.New("milestone does not belong to project")
	ErrMilestoneAlreadyPaid   = errors.New("milestone already paid")
	ErrRecipientMismatch      = errors.New("recipient is not the assigned artisan")
)
