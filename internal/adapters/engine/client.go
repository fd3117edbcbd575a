// Package engine mints claimed assets through a thirdweb-compatible
// transaction engine.
package engine

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/telemetry"
)

const tracerName = "github.com/samirrijal/geodrop/internal/adapters/engine"

// maxResponseBytes caps a claim-to response. A queue result is well under 1 KiB.
const maxResponseBytes = 1 << 20

// Config holds the engine endpoint and credentials.
type Config struct {
	URL             string
	AccessToken     string
	BackendWallet   string
	Chain           string
	ContractAddress string
	Timeout         time.Duration
}

// Client implements ports.Minter against the engine's ERC-1155 claim-to route.
//
// The client is safe for concurrent use.
type Client struct {
	session *http.Client
	cfg     Config
}

// New creates a Client. It never fails on missing credentials; Ready reports them instead.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Chain == "" {
		cfg.Chain = "mumbai"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{
		session: &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
	}
}

// Ready reports whether every credential needed to mint is configured.
func (c *Client) Ready() error {
	var missing []string
	if c.cfg.URL == "" {
		missing = append(missing, "engine url")
	}
	if c.cfg.AccessToken == "" {
		missing = append(missing, "engine access token")
	}
	if c.cfg.BackendWallet == "" {
		missing = append(missing, "backend wallet")
	}
	if c.cfg.ContractAddress == "" {
		missing = append(missing, "contract address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

type claimToRequest struct {
	Receiver string `json:"receiver"`
	TokenID  string `json:"tokenId"`
	Quantity string `json:"quantity"`
}

type claimToResponse struct {
	Result struct {
		QueueID string `json:"queueId"`
	} `json:"result"`
}

func (c *Client) claimToURL() string {
	return fmt.Sprintf("%s/contract/%s/%s/erc1155/claim-to",
		c.cfg.URL, url.PathEscape(c.cfg.Chain), url.PathEscape(c.cfg.ContractAddress))
}

// Mint queues a claim-to transaction for exactly one token. The engine's
// response body is returned verbatim in the receipt.
func (c *Client) Mint(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.claim_to")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrAssetID, req.AssetID))

	if err := c.Ready(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(claimToRequest{
		Receiver: req.Recipient,
		TokenID:  req.AssetID,
		Quantity: "1",
	})
	if err != nil {
		return nil, fmt.Errorf("encode claim-to: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.claimToURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := c.do(httpReq)
	if err != nil {
		var he *httpStatusError
		if errors.As(err, &he) {
			span.SetAttributes(attribute.Int(telemetry.AttrHTTPStatus, he.Code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim-to")
		if ctx.Err() != nil {
			return nil, fmt.Errorf("claim-to: %w", ctx.Err())
		}
		return nil, fmt.Errorf("claim-to: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int(telemetry.AttrHTTPStatus, resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read claim-to response: %w", err)
	}

	var decoded claimToResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode claim-to response: %w", err)
	}
	span.SetAttributes(attribute.String(telemetry.AttrEngineQueue, decoded.Result.QueueID))

	return &domain.Receipt{QueueID: decoded.Result.QueueID, Raw: json.RawMessage(raw)}, nil
}
