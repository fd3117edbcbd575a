package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ClaimRequest is built per request and never persisted.
// AssetPosition is whatever the caller sent; it is never used to authorize.
type ClaimRequest struct {
	AssetID          string
	Recipient        string
	ClaimantPosition *Coordinate
	AssetPosition    *Coordinate
}

// Validate checks field presence and coordinate ranges. Every error wraps
// ErrMalformedRequest.
func (r ClaimRequest) Validate() error {
	var problems []string

	if strings.TrimSpace(r.AssetID) == "" {
		problems = append(problems, "tokenId is required")
	}
	switch {
	case strings.TrimSpace(r.Recipient) == "":
		problems = append(problems, "address is required")
	case !addressPattern.MatchString(r.Recipient):
		problems = append(problems, "address must be a 0x-prefixed 20-byte hex address")
	}
	if r.ClaimantPosition == nil {
		problems = append(problems, "userPosition is required")
	} else if err := r.ClaimantPosition.Validate(); err != nil {
		problems = append(problems, "userPosition: "+err.Error())
	}
	if r.AssetPosition != nil {
		if err := r.AssetPosition.Validate(); err != nil {
			problems = append(problems, "nftPosition: "+err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrMalformedRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Key identifies the (asset, recipient) pair for deduplication.
func (r ClaimRequest) Key() string {
	return r.AssetID + "|" + strings.ToLower(r.Recipient)
}

// ClaimState is a step of the claim lifecycle.
type ClaimState int

const (
	StateReceived ClaimState = iota
	StateValidated
	StateAuthorizationChecked
	StateGranted
	StateDenied
	StateCompleted
	StateFailed
)

func (s ClaimState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidated:
		return "validated"
	case StateAuthorizationChecked:
		return "authorization_checked"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DenialReason explains an Ineligible outcome.
type DenialReason string

const (
	ReasonOutOfRange   DenialReason = "out_of_range"
	ReasonUnknownAsset DenialReason = "unknown_asset"
)

// Err maps the reason onto the error taxonomy.
func (r DenialReason) Err() error {
	if r == ReasonUnknownAsset {
		return ErrUnknownAsset
	}
	return ErrOutOfRange
}

// ClaimOutcome is one of Eligible, Ineligible, Claimed or Failed. A fresh
// outcome is produced for every request.
type ClaimOutcome interface {
	// State is the lifecycle state the request ended in.
	State() ClaimState
	// Kind is a stable label for logs and metrics.
	Kind() string
	claimOutcome()
}

// Eligible means authorization passed and no side effect has happened yet.
type Eligible struct {
	Asset    *Asset
	Distance float64
	Policy   RadiusPolicy
}

// Ineligible means the claim was denied. No side effects occurred.
type Ineligible struct {
	Reason   DenialReason
	Distance float64
	Policy   RadiusPolicy
}

// Claimed means the downstream mint accepted the request.
type Claimed struct {
	Receipt  *Receipt
	Distance float64
}

// Failed carries an error wrapping one of the taxonomy sentinels.
type Failed struct {
	Err  error
	From ClaimState
}

func (Eligible) State() ClaimState   { return StateGranted }
func (Ineligible) State() ClaimState { return StateDenied }
func (Claimed) State() ClaimState    { return StateCompleted }
func (Failed) State() ClaimState     { return StateFailed }

func (Eligible) Kind() string   { return "eligible" }
func (Ineligible) Kind() string { return "ineligible" }
func (Claimed) Kind() string    { return "claimed" }
func (Failed) Kind() string     { return "failed" }

func (Eligible) claimOutcome()   {}
func (Ineligible) claimOutcome() {}
func (Claimed) claimOutcome()    {}
func (Failed) claimOutcome()     {}

func (f Failed) Error() string {
	if f.Err == nil {
		return ErrUnexpected.Error()
	}
	return f.Err.Error()
}

func (f Failed) Unwrap() error { return f.Err }

// MintRequest is the input of the downstream minting action.
type MintRequest struct {
	AssetID   string `json:"asset_id"`
	Recipient string `json:"recipient"`
}

// Receipt is what the minting engine returned. Raw is the engine's result
// object, passed back to the caller unchanged.
type Receipt struct {
	QueueID string          `json:"queue_id,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Eligibility is the client-tier hint. It has no authorization weight.
type Eligibility struct {
	AssetID  string          `json:"asset_id"`
	Eligible bool            `json:"eligible"`
	Distance float64         `json:"distance"`
	Unit     geospatial.Unit `json:"unit"`
	Radius   float64         `json:"radius"`
}

// ClaimEvent is published after every terminal claim decision.
type ClaimEvent struct {
	ID         string          `json:"id"`
	AssetID    string          `json:"asset_id"`
	Recipient  string          `json:"recipient,omitempty"`
	Outcome    string          `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	Distance   *float64        `json:"distance,omitempty"`
	Unit       geospatial.Unit `json:"unit,omitempty"`
	QueueID    string          `json:"queue_id,omitempty"`
	Cell       string          `json:"cell,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
