package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/logging"
)

// tokenID accepts both "7" and 7 on the wire.
type tokenID string

func (t *tokenID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = tokenID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return errors.New("tokenId must be a non-negative integer or string")
	}
	*t = tokenID(n.String())
	return nil
}

// claimBody is the claim payload. nftPosition is accepted for compatibility;
// the registry position is authoritative.
type claimBody struct {
	TokenID      tokenID            `json:"tokenId"`
	Address      string             `json:"address"`
	UserPosition *domain.Coordinate `json:"userPosition"`
	NFTPosition  *domain.Coordinate `json:"nftPosition"`
}

// ClaimHandler authorizes a claim against the server radius and mints on success.
func ClaimHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return claimError(c, fiber.StatusMethodNotAllowed, msgMethodNotAllowed)
		}

		ctx := c.UserContext()

		// An unparseable body becomes an empty request so configuration is
		// still checked first and validation rejects it.
		var req domain.ClaimRequest
		var body claimBody
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			logging.FromContext(ctx).Debug("claim body rejected", "error", err)
		} else {
			req = domain.ClaimRequest{
				AssetID:          string(body.TokenID),
				Recipient:        body.Address,
				ClaimantPosition: body.UserPosition,
				AssetPosition:    body.NFTPosition,
			}
		}

		return writeClaimOutcome(c, deps.Claims.Claim(ctx, req))
	}
}

func writeClaimOutcome(c *fiber.Ctx, outcome domain.ClaimOutcome) error {
	switch o := outcome.(type) {
	case domain.Claimed:
		if len(o.Receipt.Raw) > 0 {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(fiber.StatusOK).Send(o.Receipt.Raw)
		}
		return c.JSON(fiber.Map{"result": fiber.Map{"queueId": o.Receipt.QueueID}})

	case domain.Ineligible:
		if o.Reason == domain.ReasonUnknownAsset {
			return claimError(c, fiber.StatusNotFound, msgUnknownAsset)
		}
		return claimError(c, fiber.StatusInternalServerError, msgOutOfRange)

	case domain.Failed:
		switch {
		case errors.Is(o.Err, domain.ErrMalformedRequest):
			return claimError(c, fiber.StatusBadRequest, msgMalformed)
		case errors.Is(o.Err, domain.ErrClaimInProgress):
			return claimError(c, fiber.StatusConflict, msgInProgress)
		}
	}
	return claimError(c, fiber.StatusInternalServerError, msgUnexpected)
}
