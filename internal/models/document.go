package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Title        string    `json:"title" db:"title"`
	SourceKind   string    `json:"source_kind" db:"source_kind"`
	FileName     string    `json:"file_name,omitempty" db:"file_name"`
	RawContent   []byte    `json:"-" db:"raw_content"`
	Status       string    `json:"status" db:"status"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	ChunkCount   int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Document lifecycle. Only the ingestion job moves a document out of
// pending, guarded by a status compare-and-set so two jobs can never
// write chunks for the same document concurrently.
const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

// Source kinds accepted by the upload endpoint.
const (
	SourcePDF      = "pdf"
	SourceDOCX     = "docx"
	SourceText     = "text"
	SourceMarkdown = "markdown"
	SourceCSV      = "csv"
	SourceJSON     = "json"
	SourcePaste    = "paste"
)
