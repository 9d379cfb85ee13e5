package domain

import "errors"

// Terminal rejection reasons for a single webhook delivery. None of
// these are retried by the engine; the HTTP layer maps them to status
// codes.
var (
	ErrNotFound                = errors.New("not found")
	ErrDisabled                = errors.New("disabled")
	ErrSignatureMissing        = errors.New("missing signature header")
	ErrSignatureInvalid        = errors.New("invalid signature")
	ErrVerificationUnavailable = errors.New("verification unavailable")
	ErrTimestampMissing        = errors.New("missing timestamp header")
	ErrTimestampStale          = errors.New("timestamp too old")
	ErrDuplicateDelivery       = errors.New("duplicate delivery")
)
