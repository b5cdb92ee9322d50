package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/vectorstore"
)

const testDims = 8

// stubGateway embeds texts deterministically by hashing and returns a
// canned chat reply while capturing the request.
type stubGateway struct {
	reply     string
	chatErr   error
	lastChat  *llm.ChatRequest
	chatCalls int
}

func hashVec(text string) []float32 {
	vec := make([]float32, testDims)
	for i := range vec {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		vec[i] = float32(h.Sum32()%1000) / 1000
	}
	return vec
}

func (s *stubGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	vecs := make([][]float32, len(req.Input))
	for i, text := range req.Input {
		vecs[i] = hashVec(text)
	}
	return &llm.EmbeddingResponse{Embeddings: vecs}, nil
}

func (s *stubGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.chatCalls++
	s.lastChat = &req
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &llm.ChatResponse{Content: s.reply}, nil
}

func (s *stubGateway) Provider(string) (llm.Provider, error) {
	return nil, fmt.Errorf("not implemented")
}

func newTestEngine(gw *stubGateway) (*Engine, *vectorstore.MemoryStore) {
	store := vectorstore.NewMemoryStore(testDims)
	embedder := embedding.NewService(gw, "test-model", testDims)
	engine := NewEngine(embedder, store, gw, Options{Model: "test-model", TopK: 2})
	return engine, store
}

func seed(t *testing.T, store *vectorstore.MemoryStore, tenantID uuid.UUID, contents ...string) []uuid.UUID {
	t.Helper()
	docID := uuid.New()
	chunks := make([]vectorstore.Chunk, len(contents))
	ids := make([]uuid.UUID, len(contents))
	for i, c := range contents {
		ids[i] = uuid.New()
		chunks[i] = vectorstore.Chunk{
			ID:         ids[i],
			ChunkIndex: i,
			Content:    c,
			Embedding:  hashVec(c),
		}
	}
	require.NoError(t, store.ReplaceDocument(context.Background(), tenantID, docID, chunks))
	return ids
}

func testTenant() *models.Tenant {
	return &models.Tenant{ID: uuid.New(), Name: "Acme", Persona: "You are Acme's support agent."}
}

func TestAnswerGroundsPromptInRetrievedContext(t *testing.T) {
	gw := &stubGateway{reply: "Refunds take 5 days."}
	engine, store := newTestEngine(gw)
	tn := testTenant()

	question := "How long do refunds take?"
	seed(t, store, tn.ID, question, "Shipping is free over $50.")

	answer, err := engine.Answer(context.Background(), tn, question, nil)
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 5 days.", answer.Content)

	require.NotNil(t, gw.lastChat)
	system := gw.lastChat.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "You are Acme's support agent.")
	// Both chunks fit in topK=2 and appear joined by the separator.
	assert.Contains(t, system.Content, question)
	assert.Contains(t, system.Content, "Shipping is free over $50.")
	assert.Contains(t, system.Content, "\n\n---\n\n")

	last := gw.lastChat.Messages[len(gw.lastChat.Messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, question, last.Content)
}

func TestAnswerReturnsCitationsInRetrievalOrder(t *testing.T) {
	gw := &stubGateway{reply: "answer"}
	engine, store := newTestEngine(gw)
	tn := testTenant()

	question := "refund policy"
	// The chunk identical to the question retrieves first (distance zero).
	ids := seed(t, store, tn.ID, question, "unrelated content about shipping")

	answer, err := engine.Answer(context.Background(), tn, question, nil)
	require.NoError(t, err)
	require.Len(t, answer.SourceChunkIDs, 2)
	assert.Equal(t, ids[0], answer.SourceChunkIDs[0])
}

func TestAnswerEmptyCorpusUsesSentinel(t *testing.T) {
	gw := &stubGateway{reply: FallbackAnswer}
	engine, _ := newTestEngine(gw)
	tn := testTenant()

	answer, err := engine.Answer(context.Background(), tn, "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, answer.SourceChunkIDs)
	assert.Contains(t, gw.lastChat.Messages[0].Content, noContextSentinel)
	assert.Equal(t, FallbackAnswer, answer.Content)
}

func TestAnswerDefaultPersona(t *testing.T) {
	gw := &stubGateway{reply: "hi"}
	engine, _ := newTestEngine(gw)
	tn := &models.Tenant{ID: uuid.New(), Name: "Acme"}

	_, err := engine.Answer(context.Background(), tn, "hello", nil)
	require.NoError(t, err)
	assert.Contains(t, gw.lastChat.Messages[0].Content, models.DefaultPersona)
}

func TestAnswerIncludesHistoryBetweenSystemAndQuestion(t *testing.T) {
	gw := &stubGateway{reply: "sure"}
	engine, _ := newTestEngine(gw)
	tn := testTenant()

	history := []llm.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	_, err := engine.Answer(context.Background(), tn, "follow-up", history)
	require.NoError(t, err)

	msgs := gw.lastChat.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "earlier question", msgs[1].Content)
	assert.Equal(t, "earlier answer", msgs[2].Content)
	assert.Equal(t, "follow-up", msgs[3].Content)
}

func TestAnswerPropagatesGenerationFailure(t *testing.T) {
	gw := &stubGateway{chatErr: &llm.APIError{Provider: "stub", StatusCode: 503, Message: "down", Retryable: true}}
	engine, _ := newTestEngine(gw)

	_, err := engine.Answer(context.Background(), testTenant(), "q", nil)
	require.Error(t, err)
	assert.True(t, llm.IsRetryable(err))
}

func TestAnswerTenantIsolation(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	engine, store := newTestEngine(gw)
	tn := testTenant()

	seed(t, store, uuid.New(), "other tenant's secret pricing")

	answer, err := engine.Answer(context.Background(), tn, "secret pricing", nil)
	require.NoError(t, err)
	assert.Empty(t, answer.SourceChunkIDs)
	assert.False(t, strings.Contains(gw.lastChat.Messages[0].Content, "secret pricing\n"),
		"another tenant's chunks must never reach the prompt")
	assert.Contains(t, gw.lastChat.Messages[0].Content, noContextSentinel)
}
