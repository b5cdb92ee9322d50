package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/backend/internal/channels"
	"github.com/supportflow/backend/internal/conversation"
	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/rag"
	"github.com/supportflow/backend/internal/vectorstore"
)

type stubTenants struct {
	tenants map[uuid.UUID]*models.Tenant
}

func (s *stubTenants) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, ok := s.tenants[id]
	if !ok {
		return nil, errors.New("tenant not found")
	}
	return t, nil
}

type stubSender struct {
	sent    []channels.OutboundMessage
	failing bool
}

func (s *stubSender) Send(_ context.Context, msg channels.OutboundMessage) error {
	if s.failing {
		return errors.New("provider unreachable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type replyFixture struct {
	worker        *ReplyWorker
	conversations *conversation.Service
	sender        *stubSender
	gateway       *stubGateway
	tenant        *models.Tenant
}

func newReplyFixture(t *testing.T) *replyFixture {
	t.Helper()
	gw := &stubGateway{reply: "Your order ships tomorrow."}
	tn := &models.Tenant{ID: uuid.New(), Name: "Acme"}

	convSvc := conversation.NewService(conversation.NewMemoryRepo())
	store := vectorstore.NewMemoryStore(testDims)
	embedder := embedding.NewService(gw, "test-model", testDims)
	engine := rag.NewEngine(embedder, store, gw, rag.Options{Model: "test-model"})
	sender := &stubSender{}

	w := NewReplyWorker(&stubTenants{tenants: map[uuid.UUID]*models.Tenant{tn.ID: tn}}, convSvc, engine, sender)
	w.attempts = fixedAttempts(0, 3)

	return &replyFixture{worker: w, conversations: convSvc, sender: sender, gateway: gw, tenant: tn}
}

func replyTask(t *testing.T, payload queue.ChannelReplyPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	taskType := queue.TypeEmailReply
	if payload.Channel == models.ChannelWhatsApp {
		taskType = queue.TypeWhatsAppReply
	}
	return asynq.NewTask(taskType, data)
}

func (f *replyFixture) payload() queue.ChannelReplyPayload {
	return queue.ChannelReplyPayload{
		TenantID:           f.tenant.ID.String(),
		Channel:            models.ChannelWhatsApp,
		CustomerIdentifier: "+15551234567",
		CustomerName:       "Ana",
		Body:               "Where is my order?",
		ProviderMessageID:  "SM123",
	}
}

func (f *replyFixture) transcript(t *testing.T) []*models.Message {
	t.Helper()
	convs, err := f.conversations.List(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	msgs, err := f.conversations.Messages(context.Background(), f.tenant.ID, convs[0].ID)
	require.NoError(t, err)
	return msgs
}

func TestReplyHappyPath(t *testing.T) {
	f := newReplyFixture(t)

	require.NoError(t, f.worker.ProcessTask(context.Background(), replyTask(t, f.payload())))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "+15551234567", f.sender.sent[0].To)
	assert.Equal(t, "Your order ships tomorrow.", f.sender.sent[0].Body)

	msgs := f.transcript(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleCustomer, msgs[0].Role)
	assert.Equal(t, "Where is my order?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Your order ships tomorrow.", msgs[1].Content)
}

func TestReplyDeliveryFailurePersistsExchange(t *testing.T) {
	f := newReplyFixture(t)
	f.sender.failing = true

	err := f.worker.ProcessTask(context.Background(), replyTask(t, f.payload()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	msgs := f.transcript(t)
	require.Len(t, msgs, 2, "both messages must be recorded even when delivery fails")
}

func TestReplyRetryResendsWithoutDuplicating(t *testing.T) {
	f := newReplyFixture(t)
	ctx := context.Background()

	f.sender.failing = true
	require.Error(t, f.worker.ProcessTask(ctx, replyTask(t, f.payload())))

	// The retry attempt finds the persisted exchange and only delivers.
	f.sender.failing = false
	f.gateway.chatErr = errors.New("gateway must not be called on resend")
	require.NoError(t, f.worker.ProcessTask(ctx, replyTask(t, f.payload())))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Your order ships tomorrow.", f.sender.sent[0].Body)

	msgs := f.transcript(t)
	assert.Len(t, msgs, 2, "retry must not duplicate the exchange")
}

func TestReplyGenerationFailureRetries(t *testing.T) {
	f := newReplyFixture(t)
	f.gateway.chatErr = &llm.APIError{Provider: "stub", StatusCode: 503, Message: "down", Retryable: true}

	err := f.worker.ProcessTask(context.Background(), replyTask(t, f.payload()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, f.sender.sent)
}

func TestReplyDegradesAfterExhaustedRetries(t *testing.T) {
	f := newReplyFixture(t)
	f.gateway.chatErr = &llm.APIError{Provider: "stub", StatusCode: 503, Message: "down", Retryable: true}
	f.worker.attempts = fixedAttempts(3, 3)

	require.NoError(t, f.worker.ProcessTask(context.Background(), replyTask(t, f.payload())))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, rag.DegradedAnswer, f.sender.sent[0].Body)

	msgs := f.transcript(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, rag.DegradedAnswer, msgs[1].Content)
}

func TestReplyDeliveryExhaustedRetriesGivesUp(t *testing.T) {
	f := newReplyFixture(t)
	f.sender.failing = true
	f.worker.attempts = fixedAttempts(3, 3)

	err := f.worker.ProcessTask(context.Background(), replyTask(t, f.payload()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestReplyReusesCustomerThread(t *testing.T) {
	f := newReplyFixture(t)
	ctx := context.Background()

	first := f.payload()
	require.NoError(t, f.worker.ProcessTask(ctx, replyTask(t, first)))

	second := f.payload()
	second.Body = "Any update?"
	second.ProviderMessageID = "SM456"
	require.NoError(t, f.worker.ProcessTask(ctx, replyTask(t, second)))

	msgs := f.transcript(t)
	assert.Len(t, msgs, 4, "both exchanges must land in one thread")
}

func TestReplyMalformedPayloadSkipsRetry(t *testing.T) {
	f := newReplyFixture(t)
	err := f.worker.ProcessTask(context.Background(), asynq.NewTask(queue.TypeWhatsAppReply, []byte("{broken")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
