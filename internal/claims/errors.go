package claims

import "errors"

// Sentinel errors for claim model operations.
var (
	ErrNilClaim         = errors.New("nil claim")
	ErrClaimMismatch    = errors.New("claim id does not match model")
	ErrNoAnalysis       = errors.New("claim has no analysis result")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
