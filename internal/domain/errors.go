package domain

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("amount below minimum withdrawal")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrCapReached          = errors.New("activation cap reached")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskAlreadyDone     = errors.New("task already completed")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrAlreadyReferred     = errors.New("referral already used")
	ErrSelfReferral        = errors.New("self referral")
	ErrInvalidTaskSpec     = errors.New("invalid task spec")
	ErrNotSubscribed       = errors.New("subscription requirements not met")
	ErrUserUnreachable     = errors.New("user unreachable")
	ErrGatewayUnavailable  = errors.New("verification gateway unavailable")
)
