package domain

import "errors"

// Claim error taxonomy. Adapters wrap these with fmt.Errorf("...: %w") and
// callers match them with errors.Is.
var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrOutOfRange           = errors.New("claimant out of range")
	ErrUnknownAsset         = errors.New("unknown asset")
	ErrDownstreamFailure    = errors.New("downstream failure")
	ErrTimeout              = errors.New("downstream timeout")
	ErrClaimInProgress      = errors.New("claim already in progress")
	ErrUnexpected           = errors.New("unexpected error")
)
