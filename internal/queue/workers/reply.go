package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/supportflow/backend/internal/channels"
	"github.com/supportflow/backend/internal/conversation"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/rag"
)

// historyTurns is how many prior messages go into the prompt.
const historyTurns = 10

// tenantLookup is the slice of tenant.Service the reply worker needs;
// tests implement it without a database.
type tenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// ReplyWorker answers one inbound channel message: resolve the thread,
// generate a grounded reply, persist the exchange, and deliver it.
type ReplyWorker struct {
	tenants       tenantLookup
	conversations *conversation.Service
	engine        *rag.Engine
	sender        channels.Sender
	attempts      attemptInfo
}

func NewReplyWorker(tenants tenantLookup, conversations *conversation.Service, engine *rag.Engine, sender channels.Sender) *ReplyWorker {
	return &ReplyWorker{
		tenants:       tenants,
		conversations: conversations,
		engine:        engine,
		sender:        sender,
		attempts:      asynqAttemptInfo,
	}
}

func (w *ReplyWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload queue.ChannelReplyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("bad tenant ID: %v: %w", err, asynq.SkipRetry)
	}

	t, err := w.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}

	log := slog.With("tenant_id", tenantID, "channel", payload.Channel, "customer", payload.CustomerIdentifier)

	conv, err := w.conversations.Resolve(ctx, tenantID, conversation.ResolveInput{
		Channel:            payload.Channel,
		CustomerIdentifier: payload.CustomerIdentifier,
		CustomerName:       payload.CustomerName,
	})
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	// A retried task whose earlier attempt already persisted the exchange
	// only needs to deliver again; re-answering would duplicate messages.
	reply, found, err := w.conversations.FindReplyByProviderID(ctx, conv.ID, payload.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("check prior attempt: %w", err)
	}

	if !found {
		reply, err = w.answer(ctx, t, conv.ID, payload, log)
		if err != nil {
			return err
		}
	}

	if err := w.sender.Send(ctx, channels.OutboundMessage{
		To:      payload.CustomerIdentifier,
		Subject: payload.Subject,
		Body:    reply,
	}); err != nil {
		retried, maxRetry := w.attempts(ctx)
		if retried >= maxRetry {
			log.Error("reply delivery failed permanently", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Warn("reply delivery failed, will retry", "error", err)
		return err
	}

	log.Info("reply delivered", "conversation_id", conv.ID)
	return nil
}

// answer generates the reply and records the exchange. Generation failures
// degrade to an apology on the final attempt so the customer always hears
// back; the exchange is persisted before delivery, so a later delivery
// failure never loses the transcript.
func (w *ReplyWorker) answer(ctx context.Context, t *models.Tenant, convID uuid.UUID, payload queue.ChannelReplyPayload, log *slog.Logger) (string, error) {
	history, err := w.conversations.History(ctx, convID, historyTurns)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	llmHistory := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		llmHistory = append(llmHistory, llm.Message{Role: role, Content: m.Content})
	}

	var reply string
	var chunkIDs []uuid.UUID

	answer, err := w.engine.Answer(ctx, t, payload.Body, llmHistory)
	switch {
	case err == nil:
		reply = answer.Content
		chunkIDs = answer.SourceChunkIDs
	default:
		retried, maxRetry := w.attempts(ctx)
		if llm.IsRetryable(err) && retried < maxRetry {
			log.Warn("answer generation failed, will retry", "error", err)
			return "", err
		}
		log.Error("answer generation failed, sending degraded reply", "error", err)
		reply = rag.DegradedAnswer
	}

	if err := w.conversations.RecordChannelExchange(ctx, convID, payload.ProviderMessageID, payload.Body, reply, chunkIDs); err != nil {
		return "", fmt.Errorf("record exchange: %w", err)
	}
	return reply, nil
}
