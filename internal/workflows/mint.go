package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geodrop/internal/core/domain"
)

// Application error types carried across the workflow boundary.
const (
	ErrTypeConfigurationMissing = "ConfigurationMissing"
	ErrTypeDownstreamFailure    = "DownstreamFailure"
)

// MintInput is the input for the mint workflow.
type MintInput struct {
	AssetID   string
	Recipient string
	// Timeout bounds the claim-to activity. Zero uses the default.
	Timeout time.Duration
}

// MintWorkflow runs a single claim-to against the engine. The activity gets
// exactly one attempt.
func MintWorkflow(ctx workflow.Context, input MintInput) (*domain.Receipt, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting mint workflow", "assetID", input.AssetID)

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var receipt domain.Receipt
	err := workflow.ExecuteActivity(ctx, "ClaimTo", domain.MintRequest{
		AssetID:   input.AssetID,
		Recipient: input.Recipient,
	}).Get(ctx, &receipt)
	if err != nil {
		logger.Warn("mint failed", "assetID", input.AssetID, "error", err)
		return nil, err
	}

	logger.Info("Mint queued", "assetID", input.AssetID, "queueID", receipt.QueueID)
	return &receipt, nil
}
