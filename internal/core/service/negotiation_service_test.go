package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func newNegotiations(f *fixture) *NegotiationService {
	return NewNegotiationService(f.store, f.cache, f.events, zap.NewNop(), time.Hour)
}

func TestPropose_Validation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	_, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2500})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Propose(ctx, seller, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	n, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000, Message: " please "})
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusPending, n.Status)
	assert.Equal(t, 1, n.Quantity)
	assert.Equal(t, "please", n.Message)

	_, err = svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2100})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// another buyer is unaffected
	_, err = svc.Propose(ctx, buyer2, ProposeInput{ProductID: "product-1", OfferPriceCents: 2100})
	assert.NoError(t, err)
}

func TestNegotiation_CounterFlow(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	n, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	require.NoError(t, err)

	_, err = svc.Counter(ctx, buyer, n.ID, 2200, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Counter(ctx, seller, n.ID, 2600, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Counter(ctx, seller, n.ID, 1900, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	countered, err := svc.Counter(ctx, seller, n.ID, 2200, "meet me here")
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusCountered, countered.Status)

	same, err := svc.Counter(ctx, seller, n.ID, 2200, "")
	require.NoError(t, err)
	assert.Equal(t, countered.Version, same.Version)

	_, err = svc.Counter(ctx, seller, n.ID, 2300, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Accept(ctx, seller, n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	accepted, err := svc.AcceptCounter(ctx, buyer, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusAccepted, accepted.Status)
	assert.Equal(t, int64(2200), accepted.AgreedPriceCents)

	again, err := svc.AcceptCounter(ctx, buyer, n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2200), again.AgreedPriceCents)

	_, err = svc.Withdraw(ctx, buyer, n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestNegotiation_AcceptIsIdempotent(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	n, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	require.NoError(t, err)

	first, err := svc.Accept(ctx, seller, n.ID)
	require.NoError(t, err)
	second, err := svc.Accept(ctx, seller, n.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, int64(2000), second.AgreedPriceCents)

	_, err = svc.Reject(ctx, seller, n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestNegotiation_ConcurrentDecisionsSettleOnce(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	n, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Accept(ctx, seller, n.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Withdraw(ctx, buyer, n.ID)
		}()
	}
	wg.Wait()

	got, err := f.store.GetNegotiation(ctx, n.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.NegotiationStatus{domain.NegotiationStatusAccepted, domain.NegotiationStatusWithdrawn}, got.Status)
	assert.Equal(t, 1, got.Version)
}

func TestNegotiation_DeclineAndReject(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	n, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	require.NoError(t, err)
	_, err = svc.DeclineCounter(ctx, buyer, n.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Counter(ctx, seller, n.ID, 2300, "")
	require.NoError(t, err)
	declined, err := svc.DeclineCounter(ctx, buyer, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusRejected, declined.Status)

	n2, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 1500})
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, seller, n2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusRejected, rejected.Status)

	list, err := svc.List(ctx, buyer, domain.NegotiationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNegotiation_ExpireStale(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	old := time.Now().Add(-2 * time.Hour).UTC()
	require.NoError(t, f.store.CreateNegotiation(ctx, domain.NegotiationRequest{
		ID: "old", ProductID: "product-1", BuyerID: buyer.ID, SellerID: seller.ID, Quantity: 1,
		ListPriceCents: 2500, OfferPriceCents: 2000, Status: domain.NegotiationStatusPending,
		CreatedAt: old, UpdatedAt: old,
	}))
	fresh, err := svc.Propose(ctx, buyer2, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	require.NoError(t, err)

	expired, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.store.GetNegotiation(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusExpired, got.Status)

	got, err = f.store.GetNegotiation(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusPending, got.Status)
}

func TestNegotiation_SweeperStopsWithContext(t *testing.T) {
	f := newFixture(t, 5)
	svc := newNegotiations(f)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- svc.RunSweeper(ctx, 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestPropose_RequiresApprovedSeller(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	svc := newNegotiations(f)

	_, err := NewCatalogService(f.store, f.cache, zap.NewNop()).SuspendSeller(ctx, admin, seller.ID)
	require.NoError(t, err)

	n, err := svc.Propose(ctx, buyer, ProposeInput{ProductID: "product-1", OfferPriceCents: 2000})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Nil(t, n)

	open, err := svc.List(ctx, buyer, domain.NegotiationFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)
}
