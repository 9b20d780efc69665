package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// DefaultCommissionBps is 10%, used when neither config nor seller override it.
const DefaultCommissionBps = 1000

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) {}

func publisherOrNop(p port.EventPublisher) port.EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func now() time.Time { return time.Now().UTC() }

func newID() string { return uuid.New().String() }

func orderEvent(typ domain.EventType, o domain.Order) domain.Event {
	return domain.Event{
		Type:     typ,
		BuyerID:  o.BuyerID,
		SellerID: o.SellerID,
		EntityID: o.ID,
		Status:   string(o.Status),
		Data:     o,
		At:       now(),
	}
}

// canSee reports whether actor may read a record owned by buyer/seller.
func canSee(actor domain.Actor, buyerID, sellerID string) bool {
	return actor.IsAdmin() || (actor.ID != "" && (actor.ID == buyerID || actor.ID == sellerID))
}
