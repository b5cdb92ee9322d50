// Package workers holds the asynq task handlers for ingestion and channel
// replies.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/supportflow/backend/internal/document"
	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/vectorstore"
	"github.com/supportflow/backend/pkg/chunker"
	"github.com/supportflow/backend/pkg/textextract"
)

// attemptInfo reads retry bookkeeping from the task context. Overridable so
// tests can simulate exhausted retries without asynq internals.
type attemptInfo func(ctx context.Context) (retried, maxRetry int)

func asynqAttemptInfo(ctx context.Context) (int, int) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried, maxRetry
}

// IngestWorker runs the full ingestion pipeline for one document: extract,
// chunk, embed, store.
type IngestWorker struct {
	docs     document.Repository
	vectors  vectorstore.Store
	embedder *embedding.Service
	chunks   *chunker.Chunker
	attempts attemptInfo
}

func NewIngestWorker(docs document.Repository, vectors vectorstore.Store, embedder *embedding.Service, chunks *chunker.Chunker) *IngestWorker {
	return &IngestWorker{
		docs:     docs,
		vectors:  vectors,
		embedder: embedder,
		chunks:   chunks,
		attempts: asynqAttemptInfo,
	}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("bad tenant ID: %v: %w", err, asynq.SkipRetry)
	}
	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("bad document ID: %v: %w", err, asynq.SkipRetry)
	}

	log := slog.With("document_id", docID, "tenant_id", tenantID)

	claimed, err := w.docs.ClaimForProcessing(ctx, tenantID, docID)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		// Deleted, already completed, or another job holds it.
		log.Info("skipping ingestion, document not claimable")
		return nil
	}

	if err := w.ingest(ctx, tenantID, docID); err != nil {
		return w.fail(ctx, log, tenantID, docID, err)
	}

	log.Info("document ingested")
	return nil
}

func (w *IngestWorker) ingest(ctx context.Context, tenantID, docID uuid.UUID) error {
	doc, err := w.docs.GetByID(ctx, tenantID, docID)
	if err != nil {
		return err
	}

	text, err := textextract.Extract(doc.SourceKind, doc.RawContent)
	if err != nil {
		return err
	}

	pieces := w.chunks.Split(text)
	if len(pieces) == 0 {
		return &textextract.ExtractionError{Kind: doc.SourceKind, Reason: "document has no content after extraction"}
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	vecs, err := w.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = vectorstore.Chunk{
			DocumentID: docID,
			TenantID:   tenantID,
			ChunkIndex: p.Index,
			Content:    p.Text,
			Embedding:  vecs[i],
		}
	}

	if err := w.vectors.ReplaceDocument(ctx, tenantID, docID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	return w.docs.MarkCompleted(ctx, tenantID, docID, len(chunks))
}

// fail decides between retry and terminal failure. Extraction errors are
// terminal immediately; transient errors retry until attempts run out, at
// which point the failure is recorded on the document.
func (w *IngestWorker) fail(ctx context.Context, log *slog.Logger, tenantID, docID uuid.UUID, cause error) error {
	var extErr *textextract.ExtractionError
	terminal := errors.As(cause, &extErr) || !llm.IsRetryable(cause)

	retried, maxRetry := w.attempts(ctx)
	lastAttempt := retried >= maxRetry

	if terminal || lastAttempt {
		if err := w.docs.MarkFailed(ctx, tenantID, docID, cause.Error()); err != nil {
			log.Error("recording ingestion failure", "error", err)
		}
		log.Warn("ingestion failed permanently", "error", cause)
		return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
	}

	// Put the document back so the next attempt can claim it.
	if err := w.docs.MarkPending(ctx, tenantID, docID); err != nil {
		log.Error("returning document to pending", "error", err)
	}
	log.Warn("ingestion failed, will retry", "error", cause, "retried", retried, "max_retry", maxRetry)
	return cause
}
