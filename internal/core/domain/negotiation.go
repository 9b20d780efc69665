package domain

import (
	"fmt"
	"time"
)

type NegotiationStatus string

const (
	NegotiationStatusPending   NegotiationStatus = "pending"
	NegotiationStatusCountered NegotiationStatus = "countered"
	NegotiationStatusAccepted  NegotiationStatus = "accepted"
	NegotiationStatusRejected  NegotiationStatus = "rejected"
	NegotiationStatusWithdrawn NegotiationStatus = "withdrawn"
	NegotiationStatusExpired   NegotiationStatus = "expired"
	NegotiationStatusConverted NegotiationStatus = "converted"
)

var negotiationTransitions = map[NegotiationStatus][]NegotiationStatus{
	NegotiationStatusPending: {
		NegotiationStatusAccepted,
		NegotiationStatusRejected,
		NegotiationStatusCountered,
		NegotiationStatusWithdrawn,
		NegotiationStatusExpired,
	},
	NegotiationStatusCountered: {
		NegotiationStatusAccepted,
		NegotiationStatusRejected,
		NegotiationStatusWithdrawn,
		NegotiationStatusExpired,
	},
	NegotiationStatusAccepted: {NegotiationStatusConverted},
}

// Open reports whether the negotiation still awaits a decision.
func (s NegotiationStatus) Open() bool {
	return s == NegotiationStatusPending || s == NegotiationStatusCountered
}

// CheckNegotiationTransition mirrors CheckOrderTransition for negotiations.
func CheckNegotiationTransition(from, to NegotiationStatus) (changed bool, err error) {
	if from == to {
		return false, nil
	}
	for _, allowed := range negotiationTransitions[from] {
		if allowed == to {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: negotiation %s -> %s", ErrInvalidTransition, from, to)
}

type NegotiationRequest struct {
	ID                string            `json:"id"`
	ProductID         string            `json:"product_id"`
	BuyerID           string            `json:"buyer_id"`
	SellerID          string            `json:"seller_id"`
	Quantity          int               `json:"quantity"`
	ListPriceCents    int64             `json:"list_price_cents"`
	OfferPriceCents   int64             `json:"offer_price_cents"`
	CounterPriceCents int64             `json:"counter_price_cents,omitempty"`
	AgreedPriceCents  int64             `json:"agreed_price_cents,omitempty"`
	Status            NegotiationStatus `json:"status"`
	Message           string            `json:"message,omitempty"`
	Version           int               `json:"version"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type NegotiationFilter struct {
	BuyerID   string
	SellerID  string
	ProductID string
	Status    NegotiationStatus
	OpenOnly  bool
	Before    time.Time // last updated before, used by the expiry sweep
	Limit     int
	Offset    int
}
