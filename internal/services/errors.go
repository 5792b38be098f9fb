package services

import "errors"

// Engine error taxonomy. Validation errors are terminal and user-visible;
// ErrServiceUnavailable wraps transient backend failures after the retry
// budget is spent and may be retried by the caller.
var (
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrCreditLimitReached  = errors.New("credit limit reached for this campaign")
	ErrPseudoTaken         = errors.New("pseudo already taken")
	ErrServiceUnavailable  = errors.New("service temporarily unavailable")
)
