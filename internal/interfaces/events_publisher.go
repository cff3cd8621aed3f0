package interfaces

import (
	"context"

	"github.com/sheikh-saqib/wallet-ledger/internal/models/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.TransactionApplied) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, events.TransactionApplied) error { return nil }
