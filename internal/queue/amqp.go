package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/unclebandit/fundraiser-backend/internal/event"
)

const retryHeader = "x-retry-count"

// Channel is the subset of *amqp.Channel the queue uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPQueue publishes JSON messages to durable queues named after the topic.
// Subscribers receive the raw message body as []byte.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   Channel

	mu       sync.Mutex
	declared map[string]bool

	MaxRetries int
}

// DialAMQP connects to url, retrying with exponential backoff until ctx ends.
func DialAMQP(ctx context.Context, url string, maxRetries int) (*AMQPQueue, error) {
	var conn *amqp.Connection
	err := backoff.Retry(func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Msg("broker not ready")
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q := NewAMQPQueue(ch, maxRetries)
	q.conn = conn
	log.Info().Msg("connected to RabbitMQ")
	return q, nil
}

// NewAMQPQueue wraps an open channel.
func NewAMQPQueue(ch Channel, maxRetries int) *AMQPQueue {
	return &AMQPQueue{ch: ch, declared: map[string]bool{}, MaxRetries: maxRetries}
}

func (q *AMQPQueue) declare(topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.declared[topic] {
		return nil
	}
	if _, err := q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	return q.publish(topic, payload, 0)
}

func (q *AMQPQueue) publish(topic string, payload any, retries int32) error {
	if err := q.declare(topic); err != nil {
		return err
	}

	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s message: %w", topic, err)
		}
		body = b
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{retryHeader: retries},
		Body:         body,
	}
	if e, ok := payload.(event.Event); ok {
		msg.MessageId = e.ID.String()
		msg.Type = string(e.Kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Publish("", topic, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic with manual acks. A failed delivery is
// republished with an incremented retry header until MaxRetries, then
// dropped.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	if err := q.declare(topic); err != nil {
		return err
	}

	q.mu.Lock()
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			q.deliver(topic, d, handler)
		}
		log.Info().Str("topic", topic).Msg("consumer stopped")
	}()
	return nil
}

// Acknowledger is the ack surface of an amqp.Delivery.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (q *AMQPQueue) deliver(topic string, d amqp.Delivery, handler func(payload any) error) {
	q.handle(topic, d.Body, retryCount(d.Headers), d, handler)
}

func (q *AMQPQueue) handle(topic string, body []byte, retries int32, ack Acknowledger, handler func(payload any) error) {
	err := handler(body)
	if err == nil {
		ack.Ack(false)
		return
	}

	if int(retries) >= q.MaxRetries {
		log.Error().Err(err).Str("topic", topic).Int32("retries", retries).Msg("message permanently failed")
		ack.Ack(false)
		return
	}

	if perr := q.publish(topic, body, retries+1); perr != nil {
		log.Warn().Err(perr).Str("topic", topic).Msg("republish failed, requeueing")
		ack.Nack(false, true)
		return
	}
	log.Warn().Err(err).Str("topic", topic).Int32("retry", retries+1).Msg("message failed, retrying")
	ack.Ack(false)
}

func retryCount(h amqp.Table) int32 {
	switch v := h[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	err := q.ch.Close()
	if q.conn != nil {
		if cerr := q.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
