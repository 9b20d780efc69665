package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedSeller(t *testing.T, s *SQLStore, id string) domain.Seller {
	t.Helper()
	now := time.Now().UTC()
	seller := domain.Seller{
		ID:        id,
		Name:      "Seller " + id,
		Email:     id + "@example.com",
		StoreName: "Store " + id,
		Status:    domain.SellerStatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateSeller(context.Background(), seller))
	return seller
}

func seedProduct(t *testing.T, s *SQLStore, id, sellerID string, stock int) domain.Product {
	t.Helper()
	now := time.Now().UTC()
	p := domain.Product{
		ID:          id,
		SellerID:    sellerID,
		Name:        "Desk lamp " + id,
		Description: "brass",
		Category:    "home",
		PriceCents:  2500,
		Stock:       stock,
		Status:      domain.ProductStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func newOrder(id, productID, sellerID string, qty int) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:             id,
		RequestID:      "req-" + id,
		BuyerID:        "buyer-1",
		SellerID:       sellerID,
		ProductID:      productID,
		Quantity:       qty,
		UnitPriceCents: 2500,
		TotalCents:     2500 * int64(qty),
		Status:         domain.OrderStatusPending,
		EscrowStatus:   domain.EscrowStatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSellerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")

	got, err := s.GetSeller(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SellerStatusApproved, got.Status)

	require.NoError(t, s.UpdateSellerStatus(ctx, "s1", domain.SellerStatusApproved, domain.SellerStatusSuspended, 0))
	err = s.UpdateSellerStatus(ctx, "s1", domain.SellerStatusApproved, domain.SellerStatusSuspended, 0)
	assert.ErrorIs(t, err, domain.ErrConflict)

	sellers, err := s.ListSellers(ctx, domain.SellerFilter{Status: domain.SellerStatusSuspended})
	require.NoError(t, err)
	require.Len(t, sellers, 1)
	assert.Equal(t, 1, sellers[0].Version)

	_, err = s.GetSeller(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateSellerDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	first := seedSeller(t, s, "s1")

	sameEmail := first
	sameEmail.ID = "s2"
	assert.ErrorIs(t, s.CreateSeller(ctx, sameEmail), domain.ErrConflict)

	sameID := first
	sameID.Email = "other@example.com"
	assert.ErrorIs(t, s.CreateSeller(ctx, sameID), domain.ErrConflict)

	_, err := s.GetSeller(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProductUpdateKeepsStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	p := seedProduct(t, s, "p1", "s1", 10)

	p.Name = "Floor lamp"
	p.Stock = 999
	require.NoError(t, s.UpdateProduct(ctx, p))

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Floor lamp", got.Name)
	assert.Equal(t, 10, got.Stock)
	assert.Equal(t, 1, got.Version)

	// stale version
	assert.ErrorIs(t, s.UpdateProduct(ctx, p), domain.ErrConflict)
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 3)

	stock, err := s.AdjustStock(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	_, err = s.AdjustStock(ctx, "p1", -8)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stock, err = s.AdjustStock(ctx, "p1", -7)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestListProductsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedSeller(t, s, "s2")
	seedProduct(t, s, "p1", "s1", 1)
	seedProduct(t, s, "p2", "s2", 1)

	bySeller, err := s.ListProducts(ctx, domain.ProductFilter{SellerID: "s2"})
	require.NoError(t, err)
	require.Len(t, bySeller, 1)
	assert.Equal(t, "p2", bySeller[0].ID)

	byQuery, err := s.ListProducts(ctx, domain.ProductFilter{Query: "lamp p1"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "p1", byQuery[0].ID)
}

func TestCreateOrderTakesStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 5)

	require.NoError(t, s.CreateOrder(ctx, newOrder("o1", "p1", "s1", 2)))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	byReq, err := s.GetOrderByRequestID(ctx, "req-o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", byReq.ID)

	dup := newOrder("o2", "p1", "s1", 1)
	dup.RequestID = "req-o1"
	assert.ErrorIs(t, s.CreateOrder(ctx, dup), domain.ErrDuplicateRequest)

	err = s.CreateOrder(ctx, newOrder("o3", "p1", "s1", 4))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = s.GetOrder(ctx, "o3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateOrderConvertsNegotiation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 5)

	now := time.Now().UTC()
	n := domain.NegotiationRequest{
		ID: "n1", ProductID: "p1", BuyerID: "buyer-1", SellerID: "s1", Quantity: 1,
		ListPriceCents: 2500, OfferPriceCents: 2000, AgreedPriceCents: 2000,
		Status: domain.NegotiationStatusAccepted, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateNegotiation(ctx, n))

	o := newOrder("o1", "p1", "s1", 1)
	o.NegotiationID = "n1"
	require.NoError(t, s.CreateOrder(ctx, o))

	got, err := s.GetNegotiation(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusConverted, got.Status)

	// a converted negotiation cannot price a second order
	o2 := newOrder("o2", "p1", "s1", 1)
	o2.NegotiationID = "n1"
	assert.ErrorIs(t, s.CreateOrder(ctx, o2), domain.ErrConflict)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)
}

func TestTransitionOrderPostsLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 5)
	o := newOrder("o1", "p1", "s1", 2)
	require.NoError(t, s.CreateOrder(ctx, o))

	now := time.Now().UTC()
	require.NoError(t, s.TransitionOrder(ctx, domain.OrderTransition{
		OrderID: "o1", From: domain.OrderStatusPending, To: domain.OrderStatusPaid, Version: 0,
		Postings: domain.PaymentPostings(o), At: now,
	}))

	// stale version is rejected and writes nothing
	err := s.TransitionOrder(ctx, domain.OrderTransition{
		OrderID: "o1", From: domain.OrderStatusPending, To: domain.OrderStatusPaid, Version: 0,
		Postings: domain.PaymentPostings(o), At: now,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	bal, err := s.SellerBalance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal.EscrowCents)

	commission := domain.Commission(o.TotalCents, 1000)
	require.NoError(t, s.TransitionOrder(ctx, domain.OrderTransition{
		OrderID: "o1", From: domain.OrderStatusPaid, To: domain.OrderStatusCompleted, Version: 1,
		CommissionCents: commission, Postings: domain.ReleasePostings(o, commission), At: now,
	}))

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, got.EscrowStatus)
	assert.Equal(t, int64(500), got.CommissionCents)
	assert.Equal(t, 2, got.Version)

	bal, err = s.SellerBalance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.EscrowCents)
	assert.Equal(t, int64(4500), bal.AvailableCents)

	summary, err := s.PlatformSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), summary.CommissionCents)

	entries, err := s.ListEntries(ctx, domain.LedgerFilter{OrderID: "o1"})
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestTransitionOrderRestocks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 5)
	require.NoError(t, s.CreateOrder(ctx, newOrder("o1", "p1", "s1", 2)))

	require.NoError(t, s.TransitionOrder(ctx, domain.OrderTransition{
		OrderID: "o1", From: domain.OrderStatusPending, To: domain.OrderStatusCancelled,
		Restock: true, At: time.Now().UTC(),
	}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestTransitionOrderRejectsUnbalancedPostings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 5)
	require.NoError(t, s.CreateOrder(ctx, newOrder("o1", "p1", "s1", 1)))

	err := s.TransitionOrder(ctx, domain.OrderTransition{
		OrderID: "o1", From: domain.OrderStatusPending, To: domain.OrderStatusPaid,
		Postings: []domain.Posting{{Account: "x", AmountCents: 10}}, At: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestNegotiationVersionGuard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := time.Now().Add(-100 * time.Hour).UTC()
	n := domain.NegotiationRequest{
		ID: "n1", ProductID: "p1", BuyerID: "b1", SellerID: "s1", Quantity: 1,
		ListPriceCents: 1000, OfferPriceCents: 800, Status: domain.NegotiationStatusPending,
		CreatedAt: old, UpdatedAt: old,
	}
	require.NoError(t, s.CreateNegotiation(ctx, n))

	stale, err := s.ListNegotiations(ctx, domain.NegotiationFilter{OpenOnly: true, Before: time.Now().Add(-72 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, stale, 1)

	accepted := n
	accepted.Status = domain.NegotiationStatusAccepted
	accepted.AgreedPriceCents = 800
	accepted.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateNegotiation(ctx, accepted))

	rejected := n
	rejected.Status = domain.NegotiationStatusRejected
	assert.ErrorIs(t, s.UpdateNegotiation(ctx, rejected), domain.ErrConflict)

	open, err := s.ListNegotiations(ctx, domain.NegotiationFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func fundSeller(t *testing.T, s *SQLStore, sellerID string, cents int64) {
	t.Helper()
	err := s.withTx(context.Background(), func(tx *sql.Tx) error {
		return insertPostings(context.Background(), tx, []domain.Posting{
			{Account: domain.AccountExternalBuyers, AmountCents: -cents, Kind: domain.EntryEscrowRelease},
			{Account: domain.SellerAvailableAccount(sellerID), AmountCents: cents, Kind: domain.EntryEscrowRelease},
		}, "", "", time.Now().UTC())
	})
	require.NoError(t, err)
}

func TestCreatePayoutChecksBalance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	fundSeller(t, s, "s1", 10_000)

	now := time.Now().UTC()
	p := domain.Payout{ID: "po1", SellerID: "s1", AmountCents: 6000, Status: domain.PayoutStatusRequested, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreatePayout(ctx, p, domain.PayoutHoldPostings("s1", 6000)))

	p2 := p
	p2.ID = "po2"
	err := s.CreatePayout(ctx, p2, domain.PayoutHoldPostings("s1", 6000))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	require.NoError(t, s.TransitionPayout(ctx, domain.PayoutTransition{
		PayoutID: "po1", From: domain.PayoutStatusRequested, To: domain.PayoutStatusPaid,
		Reference: "wire-1", StatementKey: "payouts/s1/po1.csv",
		Postings: domain.PayoutSettlePostings("s1", 6000), At: now,
	}))

	got, err := s.GetPayout(ctx, "po1")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPaid, got.Status)
	assert.Equal(t, "wire-1", got.Reference)

	bal, err := s.SellerBalance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), bal.AvailableCents)
	assert.Equal(t, int64(0), bal.PayoutCents)

	summary, err := s.PlatformSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), summary.PaidOutCents)

	list, err := s.ListPayouts(ctx, domain.PayoutFilter{SellerID: "s1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSeller(t, s, "s1")
	seedProduct(t, s, "p1", "s1", 10)

	var wg sync.WaitGroup
	var placed atomic.Int32
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.CreateOrder(ctx, newOrder(fmt.Sprintf("o%d", i), "p1", "s1", 1)); err == nil {
				placed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(10), placed.Load())
	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestSupportThreads(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.CreateThread(ctx, domain.SupportThread{
		ID: "t1", UserID: "b1", Subject: "Where is my parcel", Concierge: true,
		Status: domain.ThreadStatusOpen, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.AddMessage(ctx, domain.SupportMessage{
		ID: "m1", ThreadID: "t1", SenderID: "b1", SenderRole: domain.RoleBuyer, Body: "hi", CreatedAt: now,
	}))
	require.NoError(t, s.AddMessage(ctx, domain.SupportMessage{
		ID: "m2", ThreadID: "t1", SenderID: "concierge", SenderRole: domain.RoleConcierge, Body: "hello", CreatedAt: now.Add(time.Second),
	}))
	assert.ErrorIs(t, s.AddMessage(ctx, domain.SupportMessage{ID: "m3", ThreadID: "nope", CreatedAt: now}), domain.ErrNotFound)

	msgs, err := s.ListMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)

	require.NoError(t, s.UpdateThreadStatus(ctx, "t1", domain.ThreadStatusClosed))
	thread, err := s.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, thread.Concierge)
	assert.Equal(t, domain.ThreadStatusClosed, thread.Status)

	threads, err := s.ListThreads(ctx, domain.ThreadFilter{UserID: "b1"})
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}
