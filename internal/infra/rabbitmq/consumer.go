package rabbitmq

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, body []byte) error

// ExhaustedFunc is told about a message whose delivery attempts ran out,
// after the consumer has parked it on the DLQ.
type ExhaustedFunc func(ctx context.Context, body []byte, cause error)

// Consumer runs a worker pool over one queue. Failed handlers are nacked with
// requeue after an exponential backoff until MaxRetries attempts; exhausted
// messages are parked on the DLQ and acked. Handlers may still park poison
// messages themselves and return nil.
type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queue       string
	dlq         string
	workerCount int
	maxRetries  int
	baseDelay   time.Duration
	handler     MessageHandler
	exhausted   ExhaustedFunc
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	URL         string
	Queue       string
	Exchange    string
	DLQ         string
	Prefetch    int
	WorkerCount int
	MaxRetries  int // 0 means retry without bound
	BaseDelayMs int
	Exhausted   ExhaustedFunc
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := DeclareTopology(ch, cfg.Exchange, cfg.DLQ, cfg.Queue); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       cfg.Queue,
		dlq:         cfg.DLQ,
		workerCount: cfg.WorkerCount,
		maxRetries:  cfg.MaxRetries,
		baseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		handler:     handler,
		exhausted:   cfg.Exhausted,
		logger:      logger.With(zap.String("queue", cfg.Queue)),
	}, nil
}

// DeclareTopology declares the exchange, the given queues, the DLQ, and binds
// each queue with its own name as routing key. Idempotent, so every consumer
// and the publisher side can call it.
func DeclareTopology(ch *amqp.Channel, exchange, dlq string, queues ...string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range append(queues, dlq) {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	for _, q := range queues {
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("starting worker pool", zap.Int("workers", c.workerCount))

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("context cancelled, waiting for workers to finish")
	c.wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.processDelivery(ctx, d, log)
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	err := c.handler(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := attemptFromHeaders(d)
	if c.retriesExhausted(attempt) {
		log.Error("delivery attempts exhausted, parking on DLQ",
			zap.Error(err),
			zap.Int("attempt", attempt),
		)
		if dlqErr := c.parkOnDLQ(ctx, d.Body, err.Error()); dlqErr != nil {
			log.Error("failed to park message on DLQ", zap.Error(dlqErr))
		}
		if c.exhausted != nil {
			c.exhausted(ctx, d.Body, err)
		}
		_ = d.Ack(false)
		return
	}

	delay := c.calculateBackoff(attempt)
	log.Warn("message processing failed, requeueing",
		zap.Error(err),
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		_ = d.Nack(false, false)
		return
	}

	_ = d.Nack(false, true) // requeue=true
}

func (c *Consumer) retriesExhausted(attempt int) bool {
	return c.maxRetries > 0 && attempt >= c.maxRetries
}

func (c *Consumer) parkOnDLQ(ctx context.Context, body []byte, reason string) error {
	return c.channel.PublishWithContext(ctx,
		"",
		c.dlq,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-dlq-reason": reason,
			},
		},
	)
}

func attemptFromHeaders(d amqp.Delivery) int {
	if d.Headers == nil {
		return 1
	}
	if xDeath, ok := d.Headers["x-death"]; ok {
		if deaths, ok := xDeath.([]interface{}); ok && len(deaths) > 0 {
			return len(deaths)
		}
	}
	return 1
}

func (c *Consumer) calculateBackoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
