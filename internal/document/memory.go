package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/models"
)

// MemoryRepo is an in-process Repository for tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*models.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[uuid.UUID]*models.Document)}
}

func (r *MemoryRepo) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Status = models.DocStatusPending
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.docs[id]
	if !ok || d.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepo) List(_ context.Context, tenantID uuid.UUID) ([]*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var docs []*models.Document
	for _, d := range r.docs {
		if d.TenantID == tenantID {
			cp := *d
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (r *MemoryRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.docs[id]
	if !ok || d.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *MemoryRepo) ClaimForProcessing(_ context.Context, tenantID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.docs[id]
	if !ok || d.TenantID != tenantID {
		return false, nil
	}
	if d.Status != models.DocStatusPending && d.Status != models.DocStatusFailed {
		return false, nil
	}
	d.Status = models.DocStatusProcessing
	d.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepo) MarkPending(_ context.Context, tenantID, id uuid.UUID) error {
	return r.update(tenantID, id, func(d *models.Document) {
		d.Status = models.DocStatusPending
		d.ErrorMessage = ""
	})
}

func (r *MemoryRepo) MarkCompleted(_ context.Context, tenantID, id uuid.UUID, chunkCount int) error {
	return r.update(tenantID, id, func(d *models.Document) {
		d.Status = models.DocStatusCompleted
		d.ChunkCount = chunkCount
		d.ErrorMessage = ""
	})
}

func (r *MemoryRepo) MarkFailed(_ context.Context, tenantID, id uuid.UUID, errMsg string) error {
	return r.update(tenantID, id, func(d *models.Document) {
		d.Status = models.DocStatusFailed
		d.ErrorMessage = errMsg
	})
}

func (r *MemoryRepo) update(tenantID, id uuid.UUID, fn func(*models.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.docs[id]
	if !ok || d.TenantID != tenantID {
		return ErrNotFound
	}
	fn(d)
	d.UpdatedAt = time.Now()
	return nil
}
