package temporal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/telemetry"
	"github.com/samirrijal/geodrop/internal/workflows"
)

// Minter implements ports.Minter by running MintWorkflow on a worker.
// A pair that already minted, or is minting, cannot start a second workflow.
type Minter struct {
	client    client.Client
	taskQueue string
	timeout   time.Duration
	engine    ReadyChecker
}

// ReadyChecker reports missing configuration of the minting engine the
// worker calls.
type ReadyChecker interface {
	Ready() error
}

// NewMinter creates a Minter. timeout bounds the claim-to activity. engine
// is checked by Ready so a claim fails before a workflow is started.
func NewMinter(c client.Client, taskQueue string, timeout time.Duration, engine ReadyChecker) *Minter {
	return &Minter{client: c, taskQueue: taskQueue, timeout: timeout, engine: engine}
}

// WorkflowID is the deduplication key for a mint.
func WorkflowID(req domain.MintRequest) string {
	return fmt.Sprintf("mint-%s-%s", req.AssetID, strings.ToLower(req.Recipient))
}

// Ready reports whether a Temporal client and the engine credentials are
// configured.
func (m *Minter) Ready() error {
	if m.client == nil || m.taskQueue == "" {
		return fmt.Errorf("%w: temporal client", domain.ErrConfigurationMissing)
	}
	if m.engine == nil {
		return fmt.Errorf("%w: engine", domain.ErrConfigurationMissing)
	}
	if err := m.engine.Ready(); err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrConfigurationMissing, err)
	}
	return nil
}

// Mint starts the workflow and waits for its result.
func (m *Minter) Mint(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
	opts := client.StartWorkflowOptions{
		ID:                                       WorkflowID(req),
		TaskQueue:                                m.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.AttrWorkflowID, opts.ID))

	run, err := m.client.ExecuteWorkflow(ctx, opts, workflows.MintWorkflow, workflows.MintInput{
		AssetID:   req.AssetID,
		Recipient: req.Recipient,
		Timeout:   m.timeout,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil, fmt.Errorf("%w: workflow %s", domain.ErrClaimInProgress, opts.ID)
		}
		return nil, fmt.Errorf("start mint workflow: %w", err)
	}

	var receipt domain.Receipt
	if err := run.Get(ctx, &receipt); err != nil {
		return nil, mapWorkflowError(err)
	}
	return &receipt, nil
}

func mapWorkflowError(err error) error {
	var appErr *sdktemporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == workflows.ErrTypeConfigurationMissing {
		return fmt.Errorf("%w: %w", domain.ErrConfigurationMissing, err)
	}
	var timeoutErr *sdktemporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return fmt.Errorf("mint workflow: %w", err)
}
