package port

import (
	"context"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// EventPublisher delivers domain events to live subscribers. Implementations
// must not block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}
