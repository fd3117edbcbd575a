package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/usecases"
	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

const testRecipient = "0x1234567890abcdef1234567890abcdef12345678"

// milesNorth returns a point d miles due north of c.
func milesNorth(c domain.Coordinate, d float64) domain.Coordinate {
	km := d * 1.60934
	return domain.Coordinate{Lat: c.Lat + km/6371.0*180/3.141592653589793, Lng: c.Lng}
}

var assetPos = domain.Coordinate{Lat: 40.7580, Lng: -73.9855}

// --- Mocks ---

type mockRegistry struct {
	calls     int32
	getByIDFn func(ctx context.Context, id string) (*domain.Asset, error)
}

func (m *mockRegistry) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Asset{ID: id, Name: "Times Square", Position: assetPos}, nil
}

type mockMinter struct {
	calls   int32
	readyFn func() error
	mintFn  func(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error)
}

func (m *mockMinter) Ready() error {
	if m.readyFn != nil {
		return m.readyFn()
	}
	return nil
}

func (m *mockMinter) Mint(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.mintFn != nil {
		return m.mintFn(ctx, req)
	}
	return &domain.Receipt{QueueID: "q-" + req.AssetID, Raw: []byte(`{"result":{"queueId":"q-` + req.AssetID + `"}}`)}, nil
}

func (m *mockMinter) Calls() int { return int(atomic.LoadInt32(&m.calls)) }

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
	err      error
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held == nil {
		m.held = map[string]bool{}
	}
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		m.released++
		return nil
	}, true, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.ClaimEvent
}

func (m *mockPublisher) PublishClaimEvent(ctx context.Context, e *domain.ClaimEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func serverPolicy() domain.RadiusPolicy {
	return domain.RadiusPolicy{Threshold: 0.1, Unit: geospatial.Miles}
}

func newService(reg *mockRegistry, minter *mockMinter, locker *mockLocker, pub *mockPublisher) *usecases.ClaimService {
	cfg := usecases.ClaimConfig{Policy: serverPolicy(), MintTimeout: time.Second}
	// Keep nil interfaces nil.
	switch {
	case locker == nil && pub == nil:
		return usecases.NewClaimService(reg, minter, nil, nil, cfg)
	case locker == nil:
		return usecases.NewClaimService(reg, minter, nil, pub, cfg)
	case pub == nil:
		return usecases.NewClaimService(reg, minter, locker, nil, cfg)
	default:
		return usecases.NewClaimService(reg, minter, locker, pub, cfg)
	}
}

func request(pos domain.Coordinate) domain.ClaimRequest {
	return domain.ClaimRequest{AssetID: "42", Recipient: testRecipient, ClaimantPosition: &pos}
}

// --- Tests ---

func TestClaim_SamePositionIsGranted(t *testing.T) {
	for _, threshold := range []float64{1e-9, 0.001, 0.1, 1000} {
		minter := &mockMinter{}
		svc := usecases.NewClaimService(&mockRegistry{}, minter, nil, nil, usecases.ClaimConfig{
			Policy: domain.RadiusPolicy{Threshold: threshold, Unit: geospatial.Kilometers},
		})

		out := svc.Authorize(context.Background(), request(assetPos))
		e, ok := out.(domain.Eligible)
		if !ok {
			t.Fatalf("threshold %v: expected Eligible, got %s", threshold, out.Kind())
		}
		if e.Distance != 0 {
			t.Errorf("expected distance 0, got %v", e.Distance)
		}
		if minter.Calls() != 0 {
			t.Errorf("Authorize must not mint")
		}
	}
}

func TestClaim_WithinRangeMints(t *testing.T) {
	minter := &mockMinter{}
	pub := &mockPublisher{}
	svc := newService(&mockRegistry{}, minter, nil, pub)

	out := svc.Claim(context.Background(), request(milesNorth(assetPos, 0.05)))
	claimed, ok := out.(domain.Claimed)
	if !ok {
		t.Fatalf("expected Claimed, got %s (%v)", out.Kind(), out)
	}
	if claimed.Receipt.QueueID != "q-42" {
		t.Errorf("unexpected receipt: %+v", claimed.Receipt)
	}
	if claimed.Distance < 0.049 || claimed.Distance > 0.051 {
		t.Errorf("expected ~0.05 mi, got %v", claimed.Distance)
	}
	if minter.Calls() != 1 {
		t.Errorf("expected 1 mint, got %d", minter.Calls())
	}
	if out.State() != domain.StateCompleted {
		t.Errorf("expected completed state, got %s", out.State())
	}
	if len(pub.events) != 1 || pub.events[0].Outcome != "claimed" || pub.events[0].QueueID != "q-42" {
		t.Errorf("unexpected events: %+v", pub.events)
	}
}

func TestClaim_OutOfRangeIsDeniedWithoutSideEffects(t *testing.T) {
	minter := &mockMinter{}
	locker := &mockLocker{}
	svc := newService(&mockRegistry{}, minter, locker, nil)

	for i := 0; i < 3; i++ {
		out := svc.Claim(context.Background(), request(milesNorth(assetPos, 5)))
		in, ok := out.(domain.Ineligible)
		if !ok {
			t.Fatalf("expected Ineligible, got %s", out.Kind())
		}
		if in.Reason != domain.ReasonOutOfRange {
			t.Errorf("expected out_of_range, got %s", in.Reason)
		}
		if in.Distance < 4.9 || in.Distance > 5.1 {
			t.Errorf("expected ~5 mi, got %v", in.Distance)
		}
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no downstream calls, got %d", minter.Calls())
	}
	if locker.released != 0 || len(locker.held) != 0 {
		t.Errorf("denied claims must not touch the lock")
	}
}

func TestClaim_JustOverThreshold(t *testing.T) {
	minter := &mockMinter{}
	svc := newService(&mockRegistry{}, minter, nil, nil)

	out := svc.Claim(context.Background(), request(milesNorth(assetPos, 0.1001)))
	if _, ok := out.(domain.Ineligible); !ok {
		t.Fatalf("expected Ineligible, got %s", out.Kind())
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no mint")
	}
}

func TestClaim_MissingUserPositionIsMalformed(t *testing.T) {
	reg := &mockRegistry{}
	minter := &mockMinter{}
	svc := newService(reg, minter, nil, nil)

	out := svc.Claim(context.Background(), domain.ClaimRequest{AssetID: "42", Recipient: testRecipient})
	f, ok := out.(domain.Failed)
	if !ok {
		t.Fatalf("expected Failed, got %s", out.Kind())
	}
	if !errors.Is(f.Err, domain.ErrMalformedRequest) {
		t.Errorf("expected ErrMalformedRequest, got %v", f.Err)
	}
	if f.From != domain.StateReceived {
		t.Errorf("expected failure in received state, got %s", f.From)
	}
	if reg.calls != 0 {
		t.Errorf("registry must not be consulted for malformed requests")
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no mint")
	}
}

func TestClaim_ConfigurationMissingFailsClosed(t *testing.T) {
	reg := &mockRegistry{}
	minter := &mockMinter{readyFn: func() error { return errors.New("engine.url is empty") }}
	svc := newService(reg, minter, nil, nil)

	out := svc.Claim(context.Background(), request(assetPos))
	f, ok := out.(domain.Failed)
	if !ok {
		t.Fatalf("expected Failed, got %s", out.Kind())
	}
	if !errors.Is(f.Err, domain.ErrConfigurationMissing) {
		t.Errorf("expected ErrConfigurationMissing, got %v", f.Err)
	}
	if reg.calls != 0 || minter.Calls() != 0 {
		t.Errorf("no authorization logic may run without configuration")
	}
}

func TestClaim_IgnoresClientAssetPosition(t *testing.T) {
	minter := &mockMinter{}
	svc := newService(&mockRegistry{}, minter, nil, nil)

	// The claimant lies about where the asset is, placing it right on top of themselves.
	far := milesNorth(assetPos, 5)
	req := request(far)
	req.AssetPosition = &far

	out := svc.Claim(context.Background(), req)
	if _, ok := out.(domain.Ineligible); !ok {
		t.Fatalf("expected Ineligible, got %s", out.Kind())
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no mint")
	}
}

func TestClaim_UnknownAsset(t *testing.T) {
	reg := &mockRegistry{getByIDFn: func(ctx context.Context, id string) (*domain.Asset, error) {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrUnknownAsset)
	}}
	minter := &mockMinter{}
	svc := newService(reg, minter, nil, nil)

	out := svc.Claim(context.Background(), request(assetPos))
	in, ok := out.(domain.Ineligible)
	if !ok || in.Reason != domain.ReasonUnknownAsset {
		t.Fatalf("expected Ineligible(unknown_asset), got %v", out)
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no mint")
	}
}

func TestClaim_RegistryErrorIsUnexpected(t *testing.T) {
	reg := &mockRegistry{getByIDFn: func(ctx context.Context, id string) (*domain.Asset, error) {
		return nil, errors.New("connection refused")
	}}
	svc := newService(reg, &mockMinter{}, nil, nil)

	out := svc.Claim(context.Background(), request(assetPos))
	f, ok := out.(domain.Failed)
	if !ok || !errors.Is(f.Err, domain.ErrUnexpected) {
		t.Fatalf("expected Failed(unexpected), got %v", out)
	}
}

func TestClaim_DownstreamFailureIsNotRetried(t *testing.T) {
	minter := &mockMinter{mintFn: func(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
		return nil, errors.New("engine returned 500")
	}}
	svc := newService(&mockRegistry{}, minter, nil, nil)

	out := svc.Claim(context.Background(), request(assetPos))
	f, ok := out.(domain.Failed)
	if !ok {
		t.Fatalf("expected Failed, got %s", out.Kind())
	}
	if !errors.Is(f.Err, domain.ErrDownstreamFailure) {
		t.Errorf("expected ErrDownstreamFailure, got %v", f.Err)
	}
	if minter.Calls() != 1 {
		t.Errorf("expected exactly one mint attempt, got %d", minter.Calls())
	}
}

func TestClaim_MintTimeout(t *testing.T) {
	minter := &mockMinter{mintFn: func(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := usecases.NewClaimService(&mockRegistry{}, minter, nil, nil, usecases.ClaimConfig{
		Policy:      serverPolicy(),
		MintTimeout: 20 * time.Millisecond,
	})

	out := svc.Claim(context.Background(), request(assetPos))
	f, ok := out.(domain.Failed)
	if !ok {
		t.Fatalf("expected Failed, got %s", out.Kind())
	}
	if !errors.Is(f.Err, domain.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", f.Err)
	}
}

func TestClaim_LockHeldIsInProgress(t *testing.T) {
	minter := &mockMinter{}
	locker := &mockLocker{held: map[string]bool{request(assetPos).Key(): true}}
	svc := newService(&mockRegistry{}, minter, locker, nil)

	out := svc.Claim(context.Background(), request(assetPos))
	f, ok := out.(domain.Failed)
	if !ok || !errors.Is(f.Err, domain.ErrClaimInProgress) {
		t.Fatalf("expected Failed(claim in progress), got %v", out)
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no mint while the lock is held")
	}
}

func TestClaim_LockReleasedAfterMint(t *testing.T) {
	locker := &mockLocker{}
	svc := newService(&mockRegistry{}, &mockMinter{}, locker, nil)

	if out := svc.Claim(context.Background(), request(assetPos)); out.Kind() != "claimed" {
		t.Fatalf("expected claimed, got %s", out.Kind())
	}
	if locker.released != 1 || len(locker.held) != 0 {
		t.Errorf("expected lock to be released, released=%d held=%v", locker.released, locker.held)
	}
}

func TestClaim_LockErrorFailsClosed(t *testing.T) {
	minter := &mockMinter{}
	locker := &mockLocker{err: errors.New("valkey down")}
	svc := newService(&mockRegistry{}, minter, locker, nil)

	out := svc.Claim(context.Background(), request(assetPos))
	if f, ok := out.(domain.Failed); !ok || !errors.Is(f.Err, domain.ErrUnexpected) {
		t.Fatalf("expected Failed(unexpected), got %v", out)
	}
	if minter.Calls() != 0 {
		t.Errorf("expected no mint without the lock")
	}
}

func TestClaim_ConcurrentIdenticalClaimsMintOnce(t *testing.T) {
	release := make(chan struct{})
	minter := &mockMinter{mintFn: func(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
		<-release
		return &domain.Receipt{QueueID: "q-1"}, nil
	}}
	svc := usecases.NewClaimService(&mockRegistry{}, minter, nil, nil, usecases.ClaimConfig{Policy: serverPolicy()})

	const n = 8
	var wg sync.WaitGroup
	outcomes := make([]domain.ClaimOutcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = svc.Claim(context.Background(), request(assetPos))
		}(i)
	}

	// Let every goroutine reach the singleflight group before the mint returns.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if minter.Calls() != 1 {
		t.Errorf("expected 1 mint for %d identical claims, got %d", n, minter.Calls())
	}
	for i, out := range outcomes {
		if c, ok := out.(domain.Claimed); !ok || c.Receipt.QueueID != "q-1" {
			t.Errorf("claim %d: expected shared Claimed outcome, got %v", i, out)
		}
	}
}

func TestClaim_DeniedEventCarriesDistance(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(&mockRegistry{}, &mockMinter{}, nil, pub)

	svc.Claim(context.Background(), request(milesNorth(assetPos, 5)))
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Outcome != "ineligible" || ev.Reason != "out_of_range" || ev.Distance == nil {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.ID == "" || ev.OccurredAt.IsZero() {
		t.Errorf("event must carry an id and timestamp")
	}
}

func TestClaim_MalformedIsNotPublished(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(&mockRegistry{}, &mockMinter{}, nil, pub)

	svc.Claim(context.Background(), domain.ClaimRequest{})
	if len(pub.events) != 0 {
		t.Errorf("malformed requests must not be published, got %+v", pub.events)
	}
}
