// Package amqp carries the engine's two asynchronous flows over RabbitMQ:
// recurrence-process events from the trigger to the worker, and
// notification messages to the delivery consumer.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/retry"
)

type Client struct {
	conn              *amqp091.Connection
	channel           *amqp091.Channel
	exchangeName      string
	recurringQueue    string
	notificationQueue string
	retry             retry.Policy
}

func NewClient(url, exchangeName, recurringQueue, notificationQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:              conn,
		channel:           channel,
		exchangeName:      exchangeName,
		recurringQueue:    recurringQueue,
		notificationQueue: notificationQueue,
		retry:             retry.DefaultPolicy(),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.recurringQueue, c.notificationQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key equals the queue name on a direct exchange.
		err = c.channel.QueueBind(queue, queue, c.exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := retry.Do(ctx, c.retry, func() error {
		return c.channel.PublishWithContext(
			ctx,
			c.exchangeName, // exchange
			routingKey,     // routing key
			false,          // mandatory
			false,          // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishRecurringProcess publishes a materialization request for one
// recurring template.
func (c *Client) PublishRecurringProcess(ctx context.Context, ownerID, templateID, accountID string) error {
	msg := NewRecurringProcessMessage(ownerID, templateID, accountID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.recurringQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published recurring process message",
		"template_id", templateID,
		"owner_id", ownerID,
		"queue", c.recurringQueue)
	return nil
}

// PublishNotification hands an email to the notification queue.
func (c *Client) PublishNotification(ctx context.Context, recipient, subject, body string) error {
	msg := NewNotificationMessage(recipient, subject, body)
	payload, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.notificationQueue, payload); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published notification message",
		"recipient", recipient,
		"subject", subject,
		"queue", c.notificationQueue)
	return nil
}

// ConsumeRecurringProcess consumes materialization requests until ctx is
// cancelled. Handler errors requeue the delivery; malformed payloads are
// dropped.
func (c *Client) ConsumeRecurringProcess(ctx context.Context, handler func(*RecurringProcessMessage) error) error {
	msgs, err := c.channel.Consume(
		c.recurringQueue, // queue
		"",               // consumer
		false,            // auto-ack (we want manual ack)
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming recurring process messages", "queue", c.recurringQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := RecurringProcessMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"template_id", msg.TemplateID,
					"owner_id", msg.OwnerID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

// ConsumeNotifications consumes outbound notifications until ctx is
// cancelled. Delivery failures are logged and dropped, never requeued: a
// broken mailbox must not wedge the queue.
func (c *Client) ConsumeNotifications(ctx context.Context, handler func(*NotificationMessage) error) error {
	msgs, err := c.channel.Consume(
		c.notificationQueue, // queue
		"",                  // consumer
		false,               // auto-ack
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,                 // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming notification messages", "queue", c.notificationQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := NotificationMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to deliver notification",
					"error", err,
					"recipient", msg.Recipient,
					"subject", msg.Subject)
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
