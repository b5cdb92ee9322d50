package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportflow/backend/internal/models"
)

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const docCols = "id, tenant_id, title, source_kind, file_name, raw_content, status, error_message, chunk_count, created_at, updated_at"

func scanDoc(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.TenantID, &d.Title, &d.SourceKind, &d.FileName, &d.RawContent,
		&d.Status, &d.ErrorMessage, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepo) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, title, source_kind, file_name, raw_content, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.TenantID, doc.Title, doc.SourceKind, doc.FileName, doc.RawContent, models.DocStatusPending,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.Status = models.DocStatusPending
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	return scanDoc(r.db.QueryRow(ctx,
		"SELECT "+docCols+" FROM documents WHERE id = $1 AND tenant_id = $2", id, tenantID))
}

func (r *PostgresRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Document, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+docCols+" FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM documents WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ClaimForProcessing(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = now()
		 WHERE id = $2 AND tenant_id = $3 AND status IN ($4, $5)`,
		models.DocStatusProcessing, id, tenantID, models.DocStatusPending, models.DocStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("claim document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) MarkPending(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = '', updated_at = now()
		 WHERE id = $2 AND tenant_id = $3`,
		models.DocStatusPending, id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, tenantID, id uuid.UUID, chunkCount int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, error_message = '', updated_at = now()
		 WHERE id = $3 AND tenant_id = $4`,
		models.DocStatusCompleted, chunkCount, id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, errMsg string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = $2, updated_at = now()
		 WHERE id = $3 AND tenant_id = $4`,
		models.DocStatusFailed, errMsg, id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
