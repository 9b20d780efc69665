package port

import (
	"context"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type SellerRepository interface {
	CreateSeller(ctx context.Context, seller domain.Seller) error
	GetSeller(ctx context.Context, id string) (*domain.Seller, error)
	ListSellers(ctx context.Context, filter domain.SellerFilter) ([]domain.Seller, error)

	// UpdateSellerStatus moves a seller between statuses, guarded by version
	UpdateSellerStatus(ctx context.Context, id string, from, to domain.SellerStatus, version int) error
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)

	// UpdateProduct updates the product with version check for optimistic locking
	UpdateProduct(ctx context.Context, product domain.Product) error

	// AdjustStock adds delta to stock and returns the new level; it never goes below zero
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
}

type OrderRepository interface {
	// CreateOrder persists a new order, decrements product stock and converts
	// the consumed negotiation in one transaction
	CreateOrder(ctx context.Context, order domain.Order) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByRequestID(ctx context.Context, requestID string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	// TransitionOrder applies a version-guarded status change and its ledger postings atomically
	TransitionOrder(ctx context.Context, t domain.OrderTransition) error
}

type NegotiationRepository interface {
	CreateNegotiation(ctx context.Context, n domain.NegotiationRequest) error
	GetNegotiation(ctx context.Context, id string) (*domain.NegotiationRequest, error)
	ListNegotiations(ctx context.Context, filter domain.NegotiationFilter) ([]domain.NegotiationRequest, error)

	// UpdateNegotiation writes n if the stored version still equals n.Version
	UpdateNegotiation(ctx context.Context, n domain.NegotiationRequest) error
}

type PayoutRepository interface {
	// CreatePayout inserts a requested payout and its hold postings after
	// re-checking the seller's available balance inside the transaction
	CreatePayout(ctx context.Context, payout domain.Payout, postings []domain.Posting) error

	GetPayout(ctx context.Context, id string) (*domain.Payout, error)
	ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.Payout, error)
	TransitionPayout(ctx context.Context, t domain.PayoutTransition) error
}

type LedgerRepository interface {
	AccountBalance(ctx context.Context, account string) (int64, error)
	SellerBalance(ctx context.Context, sellerID string) (domain.Balance, error)
	PlatformSummary(ctx context.Context) (domain.PlatformSummary, error)
	ListEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
}

type SupportRepository interface {
	CreateThread(ctx context.Context, thread domain.SupportThread) error
	GetThread(ctx context.Context, id string) (*domain.SupportThread, error)
	ListThreads(ctx context.Context, filter domain.ThreadFilter) ([]domain.SupportThread, error)
	UpdateThreadStatus(ctx context.Context, id string, status domain.ThreadStatus) error
	AddMessage(ctx context.Context, msg domain.SupportMessage) error
	ListMessages(ctx context.Context, threadID string) ([]domain.SupportMessage, error)
}

// DatabaseRepository is the full relational store.
type DatabaseRepository interface {
	SellerRepository
	ProductRepository
	OrderRepository
	NegotiationRepository
	PayoutRepository
	LedgerRepository
	SupportRepository
}
