package eventbus

import (
	"context"

	"github.com/vecinal/certdesk/pkg/eventbus"
	"github.com/vecinal/certdesk/pkg/outbox"
)

// Dispatcher forwards relayed messages to event bus subscribers of the form
//
//	func(ctx context.Context, meta *outbox.Meta, payload json.RawMessage) error
//
// A subscriber error or panic fails the dispatch so the relay retries it.
type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func New(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	meta := msg.Meta
	return d.bus.PublishE(ctx, &meta, msg.Payload)
}
