package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes one delivered message body. A non-nil error negatively
// acknowledges the delivery without requeue: after a single attempt the
// message is gone (or routed to the dead-letter queue when one is
// configured).
type Handler func(ctx context.Context, body []byte) error

// Broker is the messaging contract the services program against. Publish is
// fire-and-forget: no confirmation of consumer processing is ever returned.
// Consume registers exactly one handler per queue per process.
type Broker interface {
	Publish(ctx context.Context, queue string, message any) error
	Consume(queue string, handler Handler) error
}

// Decode unmarshals a payload and runs its boundary validation. A failure
// here is an ordinary handler error, so malformed messages take the same
// drop path as any other processing failure.
func Decode(body []byte, into interface{ Validate() error }) error {
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := into.Validate(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
