package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors:
//   - ErrNotFound: record does not exist
//   - ErrAlreadyUsed: a unique key (identifier, claim, membership) is taken
//   - ErrInvalidState: record is in the wrong state for the requested write
//   - ErrInsufficientBalance: a vault cannot cover a debit
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyUsed         = errors.New("already used")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnavailable         = errors.New("unavailable")
)
