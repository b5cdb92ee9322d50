package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/backend/internal/document"
	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/vectorstore"
	"github.com/supportflow/backend/pkg/chunker"
)

const testDims = 8

type stubGateway struct {
	reply    string
	embedErr error
	chatErr  error
	lastChat *llm.ChatRequest
}

func (s *stubGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	vecs := make([][]float32, len(req.Input))
	for i := range req.Input {
		vecs[i] = make([]float32, testDims)
		vecs[i][0] = float32(len(req.Input[i]))
	}
	return &llm.EmbeddingResponse{Embeddings: vecs}, nil
}

func (s *stubGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.lastChat = &req
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &llm.ChatResponse{Content: s.reply}, nil
}

func (s *stubGateway) Provider(string) (llm.Provider, error) {
	return nil, fmt.Errorf("not implemented")
}

func fixedAttempts(retried, maxRetry int) attemptInfo {
	return func(context.Context) (int, int) { return retried, maxRetry }
}

func newIngestFixture(t *testing.T, gw *stubGateway) (*IngestWorker, *document.MemoryRepo, *vectorstore.MemoryStore) {
	t.Helper()
	repo := document.NewMemoryRepo()
	store := vectorstore.NewMemoryStore(testDims)
	embedder := embedding.NewService(gw, "test-model", testDims)
	ch, err := chunker.New(500, 50)
	require.NoError(t, err)

	w := NewIngestWorker(repo, store, embedder, ch)
	w.attempts = fixedAttempts(0, 3)
	return w, repo, store
}

func ingestTask(t *testing.T, tenantID, docID uuid.UUID) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(queue.DocumentIngestPayload{
		DocumentID: docID.String(),
		TenantID:   tenantID.String(),
	})
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeDocumentIngest, data)
}

func seedDoc(t *testing.T, repo *document.MemoryRepo, tenantID uuid.UUID, kind string, content []byte) *models.Document {
	t.Helper()
	doc := &models.Document{
		TenantID:   tenantID,
		Title:      "test doc",
		SourceKind: kind,
		RawContent: content,
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func TestIngestPipeline(t *testing.T) {
	w, repo, store := newIngestFixture(t, &stubGateway{})
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePaste, []byte(strings.Repeat("a", 1000)))

	require.NoError(t, w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID)))

	got, err := repo.GetByID(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, got.Status)
	assert.Equal(t, 3, got.ChunkCount)
	assert.Empty(t, got.ErrorMessage)

	results, err := store.Search(ctx, tenantID, make([]float32, testDims), 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, doc.ID, r.DocumentID)
	}
}

func TestIngestSkipsUnclaimableDocument(t *testing.T) {
	w, repo, store := newIngestFixture(t, &stubGateway{})
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePaste, []byte("text"))
	require.NoError(t, repo.MarkCompleted(ctx, tenantID, doc.ID, 1))

	require.NoError(t, w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID)))

	results, err := store.Search(ctx, tenantID, make([]float32, testDims), 10)
	require.NoError(t, err)
	assert.Empty(t, results, "a completed document must not be re-processed")
}

func TestIngestDeletedDocumentIsNoop(t *testing.T) {
	w, _, _ := newIngestFixture(t, &stubGateway{})
	err := w.ProcessTask(context.Background(), ingestTask(t, uuid.New(), uuid.New()))
	assert.NoError(t, err)
}

func TestIngestExtractionErrorIsTerminal(t *testing.T) {
	w, repo, _ := newIngestFixture(t, &stubGateway{})
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePDF, []byte("not a pdf"))

	err := w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "extraction errors must not retry")

	got, err := repo.GetByID(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestIngestTransientFailureRetries(t *testing.T) {
	gw := &stubGateway{embedErr: &llm.APIError{Provider: "stub", StatusCode: 503, Message: "down", Retryable: true}}
	w, repo, _ := newIngestFixture(t, gw)
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePaste, []byte("some text"))

	err := w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "transient failures must surface for retry")

	got, err := repo.GetByID(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusPending, got.Status, "document must be claimable by the retry")
}

func TestIngestExhaustedRetriesRecordsFailure(t *testing.T) {
	gw := &stubGateway{embedErr: &llm.APIError{Provider: "stub", StatusCode: 503, Message: "still down", Retryable: true}}
	w, repo, _ := newIngestFixture(t, gw)
	w.attempts = fixedAttempts(3, 3)
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePaste, []byte("some text"))

	err := w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	got, err := repo.GetByID(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "still down")
}

func TestIngestTerminalProviderErrorDoesNotRetry(t *testing.T) {
	gw := &stubGateway{embedErr: &llm.APIError{Provider: "stub", StatusCode: 401, Message: "bad key", Retryable: false}}
	w, repo, _ := newIngestFixture(t, gw)
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePaste, []byte("some text"))

	err := w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	got, err := repo.GetByID(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, got.Status)
}

func TestIngestTwiceConvergesToSameChunkSet(t *testing.T) {
	w, repo, store := newIngestFixture(t, &stubGateway{})
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedDoc(t, repo, tenantID, models.SourcePaste, []byte(strings.Repeat("b", 1000)))

	require.NoError(t, w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID)))
	require.NoError(t, repo.MarkPending(ctx, tenantID, doc.ID))
	require.NoError(t, w.ProcessTask(ctx, ingestTask(t, tenantID, doc.ID)))

	results, err := store.Search(ctx, tenantID, make([]float32, testDims), 20)
	require.NoError(t, err)
	assert.Len(t, results, 3, "re-ingestion must replace chunks, not append")

	got, err := repo.GetByID(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, got.Status)
	assert.Equal(t, 3, got.ChunkCount)
}

func TestIngestMalformedPayloadSkipsRetry(t *testing.T) {
	w, _, _ := newIngestFixture(t, &stubGateway{})
	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeDocumentIngest, []byte("{broken")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
