package domain

import "time"

type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventOrderFailed        EventType = "order.failed"
	EventOrderUpdated       EventType = "order.updated"
	EventNegotiationUpdated EventType = "negotiation.updated"
	EventPayoutUpdated      EventType = "payout.updated"
	EventSupportMessage     EventType = "support.message"
)

// Event is a domain change pushed to interested buyers and sellers.
type Event struct {
	Type     EventType `json:"type"`
	BuyerID  string    `json:"buyer_id,omitempty"`
	SellerID string    `json:"seller_id,omitempty"`
	EntityID string    `json:"entity_id"`
	Status   string    `json:"status,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

// Concerns reports whether the event is addressed to userID.
func (e Event) Concerns(userID string) bool {
	return userID != "" && (e.BuyerID == userID || e.SellerID == userID)
}
