package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	redis "github.com/redis/go-redis/v9"
)

// QueueMessage is the JSON document pushed onto the Redis list.
type QueueMessage struct {
	Definition string `json:"definition"`
	Name       string `json:"name,omitempty"`
	Input      any    `json:"input"`
}

// QueueClient is the part of a Redis client the queue trigger uses.
// redis.UniversalClient satisfies it.
type QueueClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// QueueTrigger pops start requests from a Redis list.
type QueueTrigger struct {
	starter Starter
	client  QueueClient
	queue   string
	logger  *slog.Logger
	// retryDelay is the pause after handing a message back because the
	// engine queue was full.
	retryDelay time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewQueueTrigger(starter Starter, client QueueClient, queue string, logger *slog.Logger) (*QueueTrigger, error) {
	if queue == "" {
		return nil, errors.New("queue trigger queue name is required")
	}
	return &QueueTrigger{
		starter:    starter,
		client:     client,
		queue:      queue,
		retryDelay: time.Second,
		stopCh:     make(chan struct{}),
		logger:     logger.With("module", "queue_trigger", "queue", queue),
	}, nil
}

func (t *QueueTrigger) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := t.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	t.wg.Add(1)
	go t.consume(ctx)
	return nil
}

func (t *QueueTrigger) consume(ctx context.Context) {
	defer t.wg.Done()
	t.logger.InfoContext(ctx, "Starting queue consumer")
	for {
		select {
		case <-t.stopCh:
			t.logger.InfoContext(ctx, "Queue consumer stopped")
			return
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")
			return
		default:
			if err := t.poll(ctx); err != nil {
				t.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (t *QueueTrigger) poll(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, time.Second, t.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to pop message from queue: %w", err)
	}
	if len(result) < 2 {
		return nil
	}
	if _, err := t.handle(ctx, result[1]); err != nil {
		if errors.Is(err, engine.ErrQueueFull) {
			return t.requeue(ctx, result[1])
		}
		// malformed messages and unknown definitions fail the same way again
		t.logger.WarnContext(ctx, "Dropping queue message", "error", err)
	}
	return nil
}

// requeue puts a message back at the head of the list and pauses so the
// engine can drain before the next attempt.
func (t *QueueTrigger) requeue(ctx context.Context, raw string) error {
	if err := t.client.LPush(context.WithoutCancel(ctx), t.queue, raw).Err(); err != nil {
		t.logger.ErrorContext(ctx, "Lost queue message, requeue failed", "message", raw, "error", err)
		return fmt.Errorf("failed to requeue message: %w", err)
	}
	t.logger.WarnContext(ctx, "Engine queue full, message requeued", "retry_in", t.retryDelay)
	select {
	case <-time.After(t.retryDelay):
	case <-ctx.Done():
	case <-t.stopCh:
	}
	return nil
}

// handle starts the execution a message asks for.
func (t *QueueTrigger) handle(ctx context.Context, raw string) (string, error) {
	var msg QueueMessage
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return "", fmt.Errorf("decoding queue message: %w", err)
	}
	if msg.Definition == "" {
		return "", errors.New("queue message has no definition")
	}
	id, err := t.starter.StartExecution(ctx, msg.Definition, msg.Input, engine.StartOptions{Name: msg.Name})
	if err != nil {
		return "", fmt.Errorf("starting %s: %w", msg.Definition, err)
	}
	t.logger.InfoContext(ctx, "Queued execution started", "definition", msg.Definition, "execution_id", id)
	return id, nil
}

func (t *QueueTrigger) Stop() {
	close(t.stopCh)
	t.wg.Wait()
}
