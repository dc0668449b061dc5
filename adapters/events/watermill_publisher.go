package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

const (
	LoginTopic         = "clavis.auth.login"
	LogoutTopic        = "clavis.auth.logout"
	ContextSwitchTopic = "clavis.context.switch"
)

// LoginEvent is published after a successful DID authentication.
type LoginEvent struct {
	UserID string `json:"user_id"`
	DID    string `json:"did"`
}

// LogoutEvent is published when a refresh token is revoked, so other
// instances can drop the session.
type LogoutEvent struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
}

// ContextSwitchEvent is published when a client changes its active context.
type ContextSwitchEvent struct {
	UserID   string `json:"user_id"`
	Mode     string `json:"mode"`
	TenantID string `json:"tenant_id,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID, did string) error {
	return p.publish(LoginTopic, LoginEvent{UserID: userID, DID: did})
}

// PublishLogout publishes a logout event.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID, tokenID string) error {
	return p.publish(LogoutTopic, LogoutEvent{UserID: userID, TokenID: tokenID})
}

// PublishContextSwitch publishes a context switch event.
func (p *WatermillPublisher) PublishContextSwitch(ctx context.Context, userID string, mode core.ContextMode, tenantID string) error {
	return p.publish(ContextSwitchTopic, ContextSwitchEvent{UserID: userID, Mode: string(mode), TenantID: tenantID})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher discards all events. Used in tests and single-instance
// deployments without Redis.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that does nothing.
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (NopPublisher) PublishLogin(ctx context.Context, userID, did string) error { return nil }

func (NopPublisher) PublishLogout(ctx context.Context, userID, tokenID string) error { return nil }

func (NopPublisher) PublishContextSwitch(ctx context.Context, userID string, mode core.ContextMode, tenantID string) error {
	return nil
}

var (
	_ ports.EventPublisher = (*WatermillPublisher)(nil)
	_ ports.EventPublisher = (*NopPublisher)(nil)
)
