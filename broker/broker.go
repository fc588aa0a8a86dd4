package broker

import (
	"context"
	"time"
)

// StatusChanged is published whenever a billing event changes a subscription status.
// On the wire it is encoded as protocol.StatusChanged
type StatusChanged struct {
	UserID  string
	From    string
	To      string
	EventID string
	At      time.Time
}

// Broker defines the interface for publishing subscription events via message broker
type Broker interface {
	Close()
	PublishStatusChanged(ctx context.Context, msg StatusChanged) error
}

// NoopBroker drops every message. It is used when no message broker is configured
type NoopBroker struct{}

var _ Broker = NoopBroker{}

// Close does nothing
func (NoopBroker) Close() {}

// PublishStatusChanged does nothing
func (NoopBroker) PublishStatusChanged(ctx context.Context, msg StatusChanged) error {
	return nil
}
