// Package client is the claimant side of GeoDrop: it reads assets and the
// hint radius from the API, evaluates the hint locally and submits claims.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/usecases"
)

// msgOutOfRange is the claim endpoint's denial message. A denial shares the
// 500 status with server failures, so only the message tells them apart.
const msgOutOfRange = "You are not within range of the NFT"

// Client talks to a GeoDrop API.
type Client struct {
	baseURL string
	session *http.Client
}

// New returns a client for baseURL. A zero timeout means 60s, which leaves
// room for the server-side mint.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: &http.Client{Timeout: timeout},
	}
}

// ResponseError is a non-2xx answer from the API.
type ResponseError struct {
	Status  int
	Message string
	kind    error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *ResponseError) Unwrap() error { return e.kind }

// Policies are the radii the server advertises.
type Policies struct {
	Claim domain.RadiusPolicy `json:"claim"`
	Hint  domain.RadiusPolicy `json:"hint"`
}

// Policy fetches the claim and hint radii.
func (c *Client) Policy(ctx context.Context) (*Policies, error) {
	var p Policies
	if err := c.getJSON(ctx, "/v1/policy", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Asset fetches one asset.
func (c *Client) Asset(ctx context.Context, id string) (*domain.Asset, error) {
	var a domain.Asset
	if err := c.getJSON(ctx, "/v1/assets/"+url.PathEscape(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Hint fetches the asset and evaluates the proximity hint locally. It only
// tells the caller whether a claim is worth sending.
func (c *Client) Hint(ctx context.Context, assetID string, position domain.Coordinate, policy domain.RadiusPolicy) (*domain.Eligibility, *domain.Asset, error) {
	asset, err := c.Asset(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	hint := usecases.EvaluateHint(asset.ID, position, asset.Position, policy)
	return &hint, asset, nil
}

// ClaimInput is what the claimant sends.
type ClaimInput struct {
	AssetID       string
	Recipient     string
	Position      domain.Coordinate
	AssetPosition *domain.Coordinate
}

type claimBody struct {
	TokenID      string             `json:"tokenId"`
	Address      string             `json:"address"`
	UserPosition domain.Coordinate  `json:"userPosition"`
	NFTPosition  *domain.Coordinate `json:"nftPosition,omitempty"`
}

// Claim submits one claim and returns the engine result the server relays.
// Errors are *ResponseError values wrapping the matching domain error.
func (c *Client) Claim(ctx context.Context, in ClaimInput) (json.RawMessage, error) {
	body, err := json.Marshal(claimBody{
		TokenID:      in.AssetID,
		Address:      in.Recipient,
		UserPosition: in.Position,
		NFTPosition:  in.AssetPosition,
	})
	if err != nil {
		return nil, fmt.Errorf("encode claim: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/mintNFT", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, claimError(resp.StatusCode, data)
	}
	return json.RawMessage(data), nil
}

func claimError(status int, body []byte) *ResponseError {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	if e.Error == "" {
		e.Error = strings.TrimSpace(string(body))
	}

	err := &ResponseError{Status: status, Message: e.Error, kind: domain.ErrUnexpected}
	switch {
	case status == http.StatusBadRequest:
		err.kind = domain.ErrMalformedRequest
	case status == http.StatusNotFound:
		err.kind = domain.ErrUnknownAsset
	case status == http.StatusConflict:
		err.kind = domain.ErrClaimInProgress
	case status == http.StatusMethodNotAllowed:
		err.kind = domain.ErrMalformedRequest
	case e.Error == msgOutOfRange:
		err.kind = domain.ErrOutOfRange
	}
	return err
}

// Explain turns a claim error into something the claimant can act on.
func Explain(err error) string {
	var netErr interface{ Timeout() bool }
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrOutOfRange):
		return "You are too far from the drop. Move closer and try again."
	case errors.Is(err, domain.ErrUnknownAsset):
		return "That drop does not exist. Check the token ID."
	case errors.Is(err, domain.ErrClaimInProgress):
		return "A claim for this drop is already being processed. Wait a moment before checking your wallet."
	case errors.Is(err, domain.ErrMalformedRequest):
		return "The claim was rejected as invalid. Check the wallet address and your position."
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "The server took too long to answer. The mint may still complete; check your wallet before retrying."
	case errors.Is(err, domain.ErrUnexpected):
		return "The server could not complete the claim. Try again later."
	default:
		return "Could not reach the server. Check your connection and the server address."
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(b, &apiErr)
		kind := domain.ErrUnexpected
		switch resp.StatusCode {
		case http.StatusNotFound:
			kind = domain.ErrUnknownAsset
		case http.StatusBadRequest:
			kind = domain.ErrMalformedRequest
		}
		return &ResponseError{Status: resp.StatusCode, Message: apiErr.Message, kind: kind}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
