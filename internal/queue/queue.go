// Package queue moves pipeline work from the webhook process to the worker
// through Redis lists. Tasks are JSON envelopes; failed tasks are retried
// with a bounded attempt count.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/jobs"
)

// Queue names. Pipeline tasks are latency-sensitive; maintenance tasks are
// scheduled housekeeping.
const (
	PipelineQueue    = "vak:queue:pipeline"
	MaintenanceQueue = "vak:queue:maintenance"
)

// MaxRetries is how many times a failed task is re-enqueued before being
// dropped.
const MaxRetries = 2

// Task is the envelope pushed onto a queue.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Client wraps the Redis connection used by both producers and the worker.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis using a redis:// URL.
func New(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing Redis client. Used by tests.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Enqueue pushes a task onto the named queue.
func (c *Client) Enqueue(ctx context.Context, queueName string, taskType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling task payload: %w", err)
	}
	task := Task{
		ID:         jobs.GenerateID("task-"),
		Type:       taskType,
		Payload:    raw,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
	return c.push(ctx, queueName, &task)
}

func (c *Client) push(ctx context.Context, queueName string, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if err := c.rdb.LPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("pushing to %s: %w", queueName, err)
	}
	log.Debug().Str("queue", queueName).Str("task_id", task.ID).Str("type", task.Type).
		Int("attempt", task.Attempt).Msg("Task enqueued")
	return nil
}

// Dequeue blocks until a task is available on any of the given queues, or
// the timeout elapses. Returns (nil, nil) on timeout.
func (c *Client) Dequeue(ctx context.Context, timeout time.Duration, queueNames ...string) (*Task, error) {
	result, err := c.rdb.BRPop(ctx, timeout, queueNames...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPOP returns [queue, value].
	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, fmt.Errorf("parsing task envelope: %w", err)
	}
	return &task, nil
}

// Retry re-enqueues a failed task with an incremented attempt counter.
// Returns false when the task has exhausted its retries.
func (c *Client) Retry(ctx context.Context, queueName string, task *Task) (bool, error) {
	if task.Attempt > MaxRetries {
		return false, nil
	}
	retried := *task
	retried.Attempt = task.Attempt + 1
	if err := c.push(ctx, queueName, &retried); err != nil {
		return false, err
	}
	return true, nil
}
