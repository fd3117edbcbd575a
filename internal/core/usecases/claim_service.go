package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/ports"
	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
	"github.com/samirrijal/geodrop/internal/pkg/logging"
	"github.com/samirrijal/geodrop/internal/pkg/metrics"
	"github.com/samirrijal/geodrop/internal/pkg/telemetry"
)

const tracerName = "github.com/samirrijal/geodrop/internal/core/usecases"

// positionToleranceMeters is how far a client-supplied asset position may
// drift from the registry before it is logged as a mismatch.
const positionToleranceMeters = 1.0

// ClaimConfig holds the server-side claim policy.
type ClaimConfig struct {
	Policy domain.RadiusPolicy
	// MintTimeout bounds the downstream call. Zero means no timeout beyond
	// the caller's context.
	MintTimeout time.Duration
	// LockTTL is how long the distributed claim lock lives if never released.
	LockTTL time.Duration
}

// ClaimService authorizes claims against the server radius and, when
// granted, triggers the downstream mint.
//
// Concurrent identical claims (same asset and recipient) are collapsed in
// process by a singleflight group and across processes by the optional
// ClaimLocker. Anything beyond that, such as a mint that succeeded and is
// re-requested after the lock expired, is left to the minter's own
// idempotency guarantees.
type ClaimService struct {
	assets ports.AssetRegistry
	minter ports.Minter
	locker ports.ClaimLocker
	events ports.EventPublisher
	cfg    ClaimConfig
	flight singleflight.Group
	now    func() time.Time
}

// NewClaimService creates a new ClaimService. locker and events may be nil.
func NewClaimService(
	assets ports.AssetRegistry,
	minter ports.Minter,
	locker ports.ClaimLocker,
	events ports.EventPublisher,
	cfg ClaimConfig,
) *ClaimService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.MintTimeout + 30*time.Second
	}
	return &ClaimService{
		assets: assets,
		minter: minter,
		locker: locker,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Policy returns the authoritative radius.
func (s *ClaimService) Policy() domain.RadiusPolicy {
	return s.cfg.Policy
}

// Ready reports whether the minter has everything it needs. The error
// always wraps domain.ErrConfigurationMissing.
func (s *ClaimService) Ready() error {
	err := s.minter.Ready()
	if err != nil && !errors.Is(err, domain.ErrConfigurationMissing) {
		err = fmt.Errorf("%w: %w", domain.ErrConfigurationMissing, err)
	}
	return err
}

// Authorize runs the read-only part of the lifecycle:
// Received → Validated → AuthorizationChecked → Granted|Denied.
// It returns Eligible, Ineligible or Failed and never has side effects, so
// it is safe to retry.
func (s *ClaimService) Authorize(ctx context.Context, req domain.ClaimRequest) domain.ClaimOutcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "claim.authorize")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrAssetID, req.AssetID))

	outcome := s.authorize(ctx, req)
	span.SetAttributes(attribute.String(telemetry.AttrClaimOutcome, outcome.Kind()))
	return outcome
}

func (s *ClaimService) authorize(ctx context.Context, req domain.ClaimRequest) domain.ClaimOutcome {
	log := logging.FromContext(ctx)

	// Received: server configuration is checked before the payload.
	if err := s.Ready(); err != nil {
		return domain.Failed{Err: err, From: domain.StateReceived}
	}
	if err := req.Validate(); err != nil {
		return domain.Failed{Err: err, From: domain.StateReceived}
	}

	// Validated: resolve the authoritative position.
	asset, err := s.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAsset) {
			return domain.Ineligible{Reason: domain.ReasonUnknownAsset, Policy: s.cfg.Policy}
		}
		return domain.Failed{
			Err:  fmt.Errorf("%w: resolve asset %q: %w", domain.ErrUnexpected, req.AssetID, err),
			From: domain.StateValidated,
		}
	}

	if req.AssetPosition != nil {
		drift := geospatial.Haversine(req.AssetPosition.Lat, req.AssetPosition.Lng, asset.Position.Lat, asset.Position.Lng)
		if drift > positionToleranceMeters {
			log.Warn("client-supplied asset position ignored",
				"asset_id", req.AssetID,
				"drift_meters", drift,
			)
		}
	}

	// AuthorizationChecked
	distance := req.ClaimantPosition.DistanceTo(asset.Position, s.cfg.Policy.Unit)
	metrics.ClaimDistance.WithLabelValues(string(s.cfg.Policy.Unit)).Observe(distance)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Float64(telemetry.AttrDistance, distance))

	if !s.cfg.Policy.Allows(distance) {
		return domain.Ineligible{Reason: domain.ReasonOutOfRange, Distance: distance, Policy: s.cfg.Policy}
	}
	return domain.Eligible{Asset: asset, Distance: distance, Policy: s.cfg.Policy}
}

// Claim runs Authorize and, if granted, Granted → Completed: the
// irreversible mint. The mint is never retried here.
func (s *ClaimService) Claim(ctx context.Context, req domain.ClaimRequest) domain.ClaimOutcome {
	outcome := s.Authorize(ctx, req)

	eligible, ok := outcome.(domain.Eligible)
	if !ok {
		s.record(ctx, req, nil, outcome)
		return outcome
	}

	// Identical in-flight claims share one mint and its outcome.
	v, _, _ := s.flight.Do(req.Key(), func() (interface{}, error) {
		out := s.complete(ctx, req, eligible)
		s.record(ctx, req, eligible.Asset, out)
		return out, nil
	})
	return v.(domain.ClaimOutcome)
}

func (s *ClaimService) complete(ctx context.Context, req domain.ClaimRequest, eligible domain.Eligible) domain.ClaimOutcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "claim.complete")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrAssetID, req.AssetID))

	log := logging.FromContext(ctx)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, req.Key(), s.cfg.LockTTL)
		if err != nil {
			span.SetStatus(codes.Error, "lock")
			return domain.Failed{
				Err:  fmt.Errorf("%w: acquire claim lock: %w", domain.ErrUnexpected, err),
				From: domain.StateGranted,
			}
		}
		if !ok {
			metrics.ClaimLockContended.Inc()
			return domain.Failed{Err: domain.ErrClaimInProgress, From: domain.StateGranted}
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release claim lock", "asset_id", req.AssetID, "error", err)
			}
		}()
	}

	mintCtx := ctx
	if s.cfg.MintTimeout > 0 {
		var cancel context.CancelFunc
		mintCtx, cancel = context.WithTimeout(ctx, s.cfg.MintTimeout)
		defer cancel()
	}

	start := s.now()
	receipt, err := s.minter.Mint(mintCtx, domain.MintRequest{AssetID: req.AssetID, Recipient: req.Recipient})
	elapsed := s.now().Sub(start)

	if err != nil {
		metrics.MintDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "mint")

		switch {
		case errors.Is(err, domain.ErrClaimInProgress),
			errors.Is(err, domain.ErrConfigurationMissing),
			errors.Is(err, domain.ErrTimeout):
			return domain.Failed{Err: err, From: domain.StateGranted}
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(mintCtx.Err(), context.DeadlineExceeded):
			return domain.Failed{
				Err:  fmt.Errorf("%w: mint %s after %s: %w", domain.ErrTimeout, req.AssetID, elapsed.Round(time.Millisecond), err),
				From: domain.StateGranted,
			}
		default:
			return domain.Failed{
				Err:  fmt.Errorf("%w: mint %s: %w", domain.ErrDownstreamFailure, req.AssetID, err),
				From: domain.StateGranted,
			}
		}
	}
	if receipt == nil {
		receipt = &domain.Receipt{}
	}

	metrics.MintDuration.WithLabelValues("ok").Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String(telemetry.AttrEngineQueue, receipt.QueueID))
	return domain.Claimed{Receipt: receipt, Distance: eligible.Distance}
}

// record logs, counts and publishes a terminal outcome.
func (s *ClaimService) record(ctx context.Context, req domain.ClaimRequest, asset *domain.Asset, outcome domain.ClaimOutcome) {
	log := logging.FromContext(ctx).With("asset_id", req.AssetID, "outcome", outcome.Kind())

	event := &domain.ClaimEvent{
		ID:         uuid.NewString(),
		AssetID:    req.AssetID,
		Recipient:  req.Recipient,
		Outcome:    outcome.Kind(),
		Unit:       s.cfg.Policy.Unit,
		OccurredAt: s.now().UTC(),
	}
	if asset != nil {
		event.Cell = asset.Position.Cell()
	}

	reason := ""
	publish := true

	switch o := outcome.(type) {
	case domain.Claimed:
		event.Distance = &o.Distance
		event.QueueID = o.Receipt.QueueID
		log.Info("claim completed", "distance", o.Distance, "queue_id", o.Receipt.QueueID)

	case domain.Ineligible:
		reason = string(o.Reason)
		if o.Reason == domain.ReasonOutOfRange {
			d := o.Distance
			event.Distance = &d
		}
		log.Info("claim denied", "reason", o.Reason, "distance", o.Distance, "radius", o.Policy.String())

	case domain.Failed:
		reason = failureReason(o.Err)
		switch {
		case errors.Is(o.Err, domain.ErrMalformedRequest):
			publish = false
			log.Info("claim rejected", "reason", reason, "error", o.Err)
		case errors.Is(o.Err, domain.ErrConfigurationMissing):
			publish = false
			log.Error("claim rejected: server misconfigured", "error", o.Err)
		case errors.Is(o.Err, domain.ErrClaimInProgress):
			log.Warn("claim rejected", "reason", reason)
		default:
			log.Error("claim failed", "reason", reason, "from", o.From.String(), "error", o.Err)
		}
	}
	event.Reason = reason
	if reason != "" {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.AttrClaimReason, reason))
	}

	metrics.ObserveClaim(outcome.Kind(), reason)

	if publish && s.events != nil {
		if err := s.events.PublishClaimEvent(ctx, event); err != nil {
			log.Warn("publish claim event", "error", err)
		}
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, domain.ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, domain.ErrClaimInProgress):
		return "claim_in_progress"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrDownstreamFailure):
		return "downstream_failure"
	default:
		return "unexpected_error"
	}
}
