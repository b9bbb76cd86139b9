package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpExchange = "realtime"

// AMQPBus maps topics onto a topic exchange. ':' in topics becomes '.' in
// routing keys so "chat:*" binds as "chat.*". A lost connection is redialled
// on the next Publish or Subscribe.
type AMQPBus struct {
	url string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewAMQPBus(url string) (*AMQPBus, error) {
	b := &AMQPBus{url: url}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.connectLocked(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *AMQPBus) connectLocked() error {
	if b.closed {
		return ErrBusClosed
	}
	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		b.conn, b.ch = conn, nil
	}
	if b.ch == nil || b.ch.IsClosed() {
		ch, err := b.conn.Channel()
		if err != nil {
			return err
		}
		if err := ch.ExchangeDeclare(amqpExchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			return err
		}
		b.ch = ch
	}
	return nil
}

func (b *AMQPBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.connectLocked(); err != nil {
		return err
	}
	return b.ch.PublishWithContext(ctx, amqpExchange, routingKey(topic), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

// Subscribe binds a private auto-delete queue on its own channel.
func (b *AMQPBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	b.mu.Lock()
	err := b.connectLocked()
	conn := b.conn
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, routingKey(pattern), amqpExchange, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: topicOf(d.RoutingKey), Payload: d.Body}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.ch != nil && !b.ch.IsClosed() {
		if err := b.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

func routingKey(topic string) string { return strings.ReplaceAll(topic, ":", ".") }

func topicOf(key string) string { return strings.ReplaceAll(key, ".", ":") }
