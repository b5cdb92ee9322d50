package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/supportflow/backend/internal/config"
)

// Enqueuer dispatches background work. Handlers enqueue through this
// interface so tests can capture tasks without Redis.
type Enqueuer interface {
	EnqueueDocumentIngest(ctx context.Context, payload DocumentIngestPayload) error
	EnqueueChannelReply(ctx context.Context, payload ChannelReplyPayload) error
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueDocumentIngest(ctx context.Context, payload DocumentIngestPayload) error {
	return c.enqueue(ctx, TypeDocumentIngest, payload,
		asynq.MaxRetry(3), asynq.Timeout(10*time.Minute), asynq.Queue("default"))
}

func (c *Client) EnqueueChannelReply(ctx context.Context, payload ChannelReplyPayload) error {
	taskType := TypeEmailReply
	if payload.Channel == "whatsapp" {
		taskType = TypeWhatsAppReply
	}
	return c.enqueue(ctx, taskType, payload,
		asynq.MaxRetry(3), asynq.Timeout(2*time.Minute), asynq.Queue("critical"))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// RetryDelay implements per-task exponential backoff: ingestion waits
// 60s * 2^n between attempts, channel replies 30s * 2^n.
func RetryDelay(n int, _ error, task *asynq.Task) time.Duration {
	base := 60 * time.Second
	if task.Type() == TypeWhatsAppReply || task.Type() == TypeEmailReply {
		base = 30 * time.Second
	}
	return base * time.Duration(1<<n)
}
