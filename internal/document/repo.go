// Package document manages knowledge-base documents and their ingestion
// lifecycle.
package document

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/models"
)

var ErrNotFound = errors.New("document not found")

// Repository persists documents. All reads and writes are tenant-scoped; a
// document is never visible outside its tenant.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*models.Document, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	// ClaimForProcessing moves a pending or failed document to processing.
	// It reports false when the document is already claimed or completed,
	// which keeps two ingestion jobs from processing the same document
	// concurrently.
	ClaimForProcessing(ctx context.Context, tenantID, id uuid.UUID) (bool, error)

	// MarkPending returns a document to the queue, clearing any recorded
	// error. Used on re-ingestion and when a transient failure will be
	// retried.
	MarkPending(ctx context.Context, tenantID, id uuid.UUID) error

	MarkCompleted(ctx context.Context, tenantID, id uuid.UUID, chunkCount int) error
	MarkFailed(ctx context.Context, tenantID, id uuid.UUID, errMsg string) error
}
