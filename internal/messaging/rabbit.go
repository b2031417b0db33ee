package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// RabbitConfig configures one process-wide broker connection.
type RabbitConfig struct {
	URL     string
	Service string
	// DeadLetterQueue, when non-empty, receives the raw body of every
	// delivery whose handler failed. Default is empty: failed deliveries
	// are dropped after the single attempt.
	DeadLetterQueue string
}

// Rabbit holds the shared connection and channel for a service process.
// Connect is idempotent; a dropped connection resets internal state so a
// later Connect re-dials, but nothing reconnects on its own. The owning
// service retries its own initialization.
type Rabbit struct {
	cfg RabbitConfig

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	handlers map[string]bool
}

func NewRabbit(cfg RabbitConfig) *Rabbit {
	return &Rabbit{cfg: cfg, handlers: make(map[string]bool)}
}

// Connect dials the broker, opens the shared channel and declares every
// queue durable. Calling it while already connected is a no-op.
func (r *Rabbit) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.cfg.Service, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	queues := AllQueues
	if r.cfg.DeadLetterQueue != "" {
		queues = append(append([]string{}, AllQueues...), r.cfg.DeadLetterQueue)
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	r.conn = conn
	r.ch = ch

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		err := <-closed
		if err != nil {
			log.Error().Str("service", r.cfg.Service).Err(err).Msg("rabbitmq connection error")
		}
		log.Warn().Str("service", r.cfg.Service).Msg("rabbitmq connection closed")
		r.reset()
	}()

	log.Info().Str("service", r.cfg.Service).Msg("connected to rabbitmq")
	return nil
}

func (r *Rabbit) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = nil
	r.ch = nil
	r.handlers = make(map[string]bool)
}

func (r *Rabbit) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil {
		return nil, fmt.Errorf("%s: channel not initialized, call Connect first", r.cfg.Service)
	}
	return r.ch, nil
}

// Publish serializes the message and sends it persistent to the named queue
// via the default exchange. Delivery is fire-and-forget.
func (r *Rabbit) Publish(ctx context.Context, queue string, message any) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", queue, err)
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	log.Debug().Str("service", r.cfg.Service).Str("queue", queue).Msg("published message")
	return nil
}

// Consume registers the handler for a queue and starts the delivery loop.
// Success acknowledges the message; a handler error negatively acknowledges
// without requeue, optionally dead-lettering the raw body first.
func (r *Rabbit) Consume(queue string, handler Handler) error {
	r.mu.Lock()
	if r.ch == nil {
		r.mu.Unlock()
		return fmt.Errorf("%s: channel not initialized, call Connect first", r.cfg.Service)
	}
	if r.handlers[queue] {
		r.mu.Unlock()
		return fmt.Errorf("%s: handler already registered for %s", r.cfg.Service, queue)
	}
	r.handlers[queue] = true
	ch := r.ch
	r.mu.Unlock()

	deliveries, err := ch.Consume(queue, r.cfg.Service+"."+queue, false, false, false, false, nil)
	if err != nil {
		r.mu.Lock()
		delete(r.handlers, queue)
		r.mu.Unlock()
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		for d := range deliveries {
			if err := handler(context.Background(), d.Body); err != nil {
				log.Error().Str("service", r.cfg.Service).Str("queue", queue).Err(err).
					Msg("message processing failed, dropping")
				r.deadLetter(queue, d.Body)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
		log.Warn().Str("service", r.cfg.Service).Str("queue", queue).Msg("consumer stopped")
	}()
	return nil
}

func (r *Rabbit) deadLetter(queue string, body []byte) {
	if r.cfg.DeadLetterQueue == "" {
		return
	}
	ch, err := r.channel()
	if err != nil {
		return
	}
	err = ch.PublishWithContext(context.Background(), "", r.cfg.DeadLetterQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{"x-origin-queue": queue},
		Body:         body,
	})
	if err != nil {
		log.Error().Str("service", r.cfg.Service).Err(err).Msg("dead-letter publish failed")
	}
}

// Close tears down the shared connection. A later Connect re-establishes it.
func (r *Rabbit) Close() {
	r.mu.Lock()
	conn := r.conn
	ch := r.ch
	r.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	r.reset()
}
