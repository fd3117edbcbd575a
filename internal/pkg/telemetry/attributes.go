package telemetry

// Span attribute keys shared by the claim path.
const (
	AttrAssetID      = "asset.id"
	AttrClaimOutcome = "claim.outcome"
	AttrClaimReason  = "claim.reason"
	AttrDistance     = "claim.distance"
	AttrEngineQueue  = "engine.queue_id"
	AttrHTTPStatus   = "http.status_code"
	AttrWorkflowID   = "temporal.workflow_id"
)
