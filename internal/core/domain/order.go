package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusDisputed  OrderStatus = "disputed"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusDisputed EscrowStatus = "disputed"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusDisputed},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDelivered: {OrderStatusCompleted, OrderStatusDisputed},
	OrderStatusDisputed:  {OrderStatusCompleted, OrderStatusRefunded},
}

// CheckOrderTransition validates moving an order from one status to another.
// A repeated transition (from == to) is reported as unchanged rather than an
// error so callers can treat retries as no-ops.
func CheckOrderTransition(from, to OrderStatus) (changed bool, err error) {
	if from == to {
		return false, nil
	}
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, from, to)
}

// EscrowFor returns the escrow state implied by an order status.
func EscrowFor(status OrderStatus) EscrowStatus {
	switch status {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return EscrowStatusHeld
	case OrderStatusDisputed:
		return EscrowStatusDisputed
	case OrderStatusCompleted:
		return EscrowStatusReleased
	case OrderStatusRefunded:
		return EscrowStatusRefunded
	default:
		return EscrowStatusNone
	}
}

type Order struct {
	ID              string       `json:"id"`
	RequestID       string       `json:"request_id"`
	BuyerID         string       `json:"buyer_id"`
	SellerID        string       `json:"seller_id"`
	ProductID       string       `json:"product_id"`
	NegotiationID   string       `json:"negotiation_id,omitempty"`
	Quantity        int          `json:"quantity"`
	UnitPriceCents  int64        `json:"unit_price_cents"`
	TotalCents      int64        `json:"total_cents"`
	CommissionCents int64        `json:"commission_cents"`
	Status          OrderStatus  `json:"status"`
	EscrowStatus    EscrowStatus `json:"escrow_status"`
	Version         int          `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type OrderFilter struct {
	BuyerID  string
	SellerID string
	Status   OrderStatus
	Limit    int
	Offset   int
}

// OrderTransition is a guarded status change persisted atomically with its
// ledger postings. Restock returns the order quantity to product stock.
type OrderTransition struct {
	OrderID         string
	From            OrderStatus
	To              OrderStatus
	Version         int
	CommissionCents int64
	Postings        []Posting
	Restock         bool
	At              time.Time
}
