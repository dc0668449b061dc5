package ports

import (
	"context"

	"github.com/clavis-id/clavis/core"
)

// EventPublisher notifies other instances about auth lifecycle events.
type EventPublisher interface {
	PublishLogin(ctx context.Context, userID, did string) error
	PublishLogout(ctx context.Context, userID, tokenID string) error
	PublishContextSwitch(ctx context.Context, userID string, mode core.ContextMode, tenantID string) error
}
