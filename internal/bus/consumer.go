package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"credcheck/internal/types"
)

// Handler processes one decoded message payload. Handlers run on worker
// goroutines, never on the polling goroutine, so a slow handler cannot
// stall consumption.
type Handler func(ctx context.Context, payload []byte)

// streamClient is the slice of the Redis client the consumer uses.
// Satisfied by *redis.Client; tests substitute a local fake.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Consumer reads one stream on behalf of one consumer group. Messages that
// fail to decode are acknowledged and skipped with a warning; the consume
// loop survives broker outages by backing off and retrying.
type Consumer struct {
	client       streamClient
	stream       string
	group        string
	consumerName string
	handler      Handler
	logger       *slog.Logger

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	workers sync.WaitGroup
}

func NewConsumer(client *redis.Client, stream, group string, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	host, _ := os.Hostname()
	return &Consumer{
		client:       client,
		stream:       stream,
		group:        group,
		consumerName: fmt.Sprintf("%s-%d", host, os.Getpid()),
		handler:      handler,
		logger:       logger,
	}
}

// Start creates the consumer group if needed and launches the consume loop.
func (c *Consumer) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return nil
	}

	if err := ensureGroup(ctx, c.client, c.stream, c.group); err != nil {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}

	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.loop(ctx)
	c.logger.Info("consumer started", "stream", c.stream, "group", c.group, "consumer", c.consumerName)
	return nil
}

// Stop signals the loop to exit and waits for it plus any in-flight
// workers. The loop observes the stop within one poll timeout.
func (c *Consumer) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if !c.running {
		return
	}
	close(c.stopCh)

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		c.logger.Warn("timed out waiting for consume loop to exit", "stream", c.stream)
	}
	c.workers.Wait()
	c.running = false
	c.logger.Info("consumer stopped", "stream", c.stream, "group", c.group)
}

func (c *Consumer) loop(ctx context.Context) {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := c.readBatch(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("consume error, backing off", "stream", c.stream, "error", err)
			select {
			case <-time.After(time.Second):
			case <-c.stopCh:
				return
			}
		}
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerName,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    time.Second,
	}).Result()

	if err == redis.Nil {
		// No messages: a normal idle tick.
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			c.dispatch(ctx, message)
		}
	}
	return nil
}

// dispatch hands one message to the handler on its own goroutine and
// acknowledges it only after the handler has finished, so a process dying
// mid-handler leaves the message pending for redelivery to the group.
// Malformed envelopes are acknowledged without dispatch so they are not
// redelivered forever.
func (c *Consumer) dispatch(ctx context.Context, message redis.XMessage) {
	payload, ok := message.Values[fieldPayload].(string)
	if !ok || payload == "" {
		c.logger.Warn("skipping malformed message", "stream", c.stream, "id", message.ID,
			"error", types.ErrMalformedMessage)
		c.ack(ctx, message.ID)
		return
	}

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.runHandler(ctx, []byte(payload), message.ID)
		c.ack(ctx, message.ID)
	}()
}

// runHandler isolates one handler invocation. A recovered panic counts as
// handled: the message is acknowledged by the caller rather than redelivered
// into the same panic forever.
func (c *Consumer) runHandler(ctx context.Context, payload []byte, id string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "stream", c.stream, "id", id, "panic", fmt.Sprint(r))
		}
	}()
	c.handler(ctx, payload)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.Error("failed to acknowledge message", "stream", c.stream, "id", id, "error", err)
	}
}
