package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryBroker is an in-process Broker with the same ack/drop semantics as
// the RabbitMQ client: handlers run synchronously on publish, a handler
// error drops the message after the single attempt. Messages published to a
// queue with no consumer yet are buffered and delivered when one registers,
// mirroring a durable queue. Tests and brokerless dev runs use it in place
// of Rabbit.
type MemoryBroker struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	buffered  map[string][][]byte
	published map[string][][]byte
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		handlers:  make(map[string]Handler),
		buffered:  make(map[string][][]byte),
		published: make(map[string][][]byte),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, queue string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", queue, err)
	}

	b.mu.Lock()
	b.published[queue] = append(b.published[queue], body)
	h, ok := b.handlers[queue]
	if !ok {
		b.buffered[queue] = append(b.buffered[queue], body)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := h(ctx, body); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("message processing failed, dropping")
	}
	return nil
}

func (b *MemoryBroker) Consume(queue string, handler Handler) error {
	b.mu.Lock()
	if _, ok := b.handlers[queue]; ok {
		b.mu.Unlock()
		return fmt.Errorf("handler already registered for %s", queue)
	}
	b.handlers[queue] = handler
	backlog := b.buffered[queue]
	delete(b.buffered, queue)
	b.mu.Unlock()

	for _, body := range backlog {
		if err := handler(context.Background(), body); err != nil {
			log.Error().Str("queue", queue).Err(err).Msg("message processing failed, dropping")
		}
	}
	return nil
}

// Published returns copies of every body ever published to the queue, in
// order, whether or not a consumer saw them.
func (b *MemoryBroker) Published(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.published[queue]))
	for i, m := range b.published[queue] {
		out[i] = append([]byte(nil), m...)
	}
	return out
}
