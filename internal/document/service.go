package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/vectorstore"
)

var (
	ErrEmptyTitle      = errors.New("title is required")
	ErrEmptyContent    = errors.New("document content is required")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// UploadInput is a new document from the dashboard. Either FileName+Data
// (file upload) or Content (pasted text) must be set.
type UploadInput struct {
	Title    string
	FileName string
	Data     []byte
	Content  string
}

type Service struct {
	repo     Repository
	vectors  vectorstore.Store
	enqueuer queue.Enqueuer
}

func NewService(repo Repository, vectors vectorstore.Store, enqueuer queue.Enqueuer) *Service {
	return &Service{repo: repo, vectors: vectors, enqueuer: enqueuer}
}

// Upload validates the input, stores the document in pending state, and
// enqueues ingestion. The raw bytes stay on the document row so ingestion
// can be replayed at any time.
func (s *Service) Upload(ctx context.Context, tenantID uuid.UUID, in UploadInput) (*models.Document, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrEmptyTitle
	}

	doc := &models.Document{
		TenantID: tenantID,
		Title:    strings.TrimSpace(in.Title),
	}

	switch {
	case len(in.Data) > 0:
		kind, err := detectSourceKind(in.FileName)
		if err != nil {
			return nil, err
		}
		doc.SourceKind = kind
		doc.FileName = in.FileName
		doc.RawContent = in.Data
	case strings.TrimSpace(in.Content) != "":
		doc.SourceKind = models.SourcePaste
		doc.RawContent = []byte(in.Content)
	default:
		return nil, ErrEmptyContent
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.enqueuer.EnqueueDocumentIngest(ctx, queue.DocumentIngestPayload{
		DocumentID: doc.ID.String(),
		TenantID:   tenantID.String(),
	}); err != nil {
		return nil, fmt.Errorf("enqueue ingestion: %w", err)
	}

	return doc, nil
}

// Reingest restarts ingestion from the stored raw bytes. The document
// returns to pending and the pipeline runs from scratch; existing chunks
// are replaced, never duplicated.
func (s *Service) Reingest(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.repo.MarkPending(ctx, tenantID, id); err != nil {
		return err
	}
	return s.enqueuer.EnqueueDocumentIngest(ctx, queue.DocumentIngestPayload{
		DocumentID: id.String(),
		TenantID:   tenantID.String(),
	})
}

// Delete removes the document and its chunks. Chunks go first so a failure
// in between never leaves orphaned vectors behind a deleted document.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.vectors.DeleteDocument(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return s.repo.Delete(ctx, tenantID, id)
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Document, error) {
	return s.repo.List(ctx, tenantID)
}

func detectSourceKind(fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return models.SourcePDF, nil
	case ".docx":
		return models.SourceDOCX, nil
	case ".txt":
		return models.SourceText, nil
	case ".md", ".markdown":
		return models.SourceMarkdown, nil
	case ".csv":
		return models.SourceCSV, nil
	case ".json":
		return models.SourceJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(fileName))
	}
}
