// Package amqp queues rendered messages for asynchronous delivery.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/credit-simulator/internal/notify"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one job. Returning an error requeues the job once.
type Handler func(ctx context.Context, job *SendJob) error

// Client publishes and consumes send jobs on a durable direct exchange.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *zap.Logger
}

// NewClient dials url and declares the exchange, queue, and binding.
func NewClient(url, exchangeName, queueName string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
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
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}
	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return client, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishSendJob publishes job as a persistent message.
func (c *Client) PublishSendJob(ctx context.Context, job *SendJob) error {
	body, err := job.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	c.logger.Info("published send job",
		zap.String("op", "amqp.PublishSendJob"),
		zap.String("id", job.ID),
		zap.String("queue", c.queueName),
	)
	return nil
}

// ConsumeSendJobs runs handler for every delivery until ctx is done.
func (c *Client) ConsumeSendJobs(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consuming send jobs",
		zap.String("op", "amqp.ConsumeSendJobs"),
		zap.String("queue", c.queueName),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumption", zap.String("op", "amqp.ConsumeSendJobs"), zap.Error(ctx.Err()))
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, delivery, handler, c.logger)
		}
	}
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// handleDelivery acks on success, drops undecodable or empty jobs, requeues a
// failed job once, and drops it when it fails again after redelivery.
func handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler, logger *zap.Logger) {
	const operation = "amqp.handleDelivery"

	job, err := SendJobFromJSON(delivery.Body)
	if err != nil {
		logger.Error("failed to decode send job", zap.String("op", operation), zap.Error(err))
		if err := delivery.Nack(false, false); err != nil {
			logger.Error("failed to nack send job", zap.String("op", operation), zap.Error(err))
		}
		return
	}

	if err := handler(ctx, job); err != nil {
		requeue := !delivery.Redelivered && !errors.Is(err, notify.ErrEmptyMessage)
		logger.Error("failed to handle send job",
			zap.String("op", operation),
			zap.String("id", job.ID),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		if err := delivery.Nack(false, requeue); err != nil {
			logger.Error("failed to nack send job",
				zap.String("op", operation),
				zap.String("id", job.ID),
				zap.Error(err),
			)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		logger.Error("failed to ack send job",
			zap.String("op", operation),
			zap.String("id", job.ID),
			zap.Error(err),
		)
		return
	}
	logger.Info("send job delivered", zap.String("op", operation), zap.String("id", job.ID))
}

// NewSendJob builds a job for text.
func NewSendJob(simulationID, text, requestedBy string, now time.Time) *SendJob {
	return &SendJob{
		ID:           storage.NewID(),
		SimulationID: simulationID,
		Text:         text,
		RequestedBy:  requestedBy,
		Timestamp:    now.UTC(),
	}
}

// DeliverTo returns a Handler that hands each job's text to sender.
func DeliverTo(sender notify.Sender) Handler {
	return func(ctx context.Context, job *SendJob) error {
		return sender.Send(ctx, job.Text)
	}
}

// Publisher is the publishing half of Client.
type Publisher interface {
	PublishSendJob(ctx context.Context, job *SendJob) error
}

// QueueSender is a notify.Sender that enqueues messages instead of sending them.
type QueueSender struct {
	Publisher Publisher
	Now       func() time.Time
}

func (s QueueSender) Send(ctx context.Context, text string) error {
	if text == "" {
		return notify.ErrEmptyMessage
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Publisher.PublishSendJob(ctx, NewSendJob("", text, "", now()))
}
