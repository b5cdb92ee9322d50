package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/models"
)

// MemoryRepo is an in-process Repository for tests. A sequence counter
// orders messages so appends within the same clock tick stay ordered.
type MemoryRepo struct {
	mu       sync.RWMutex
	convs    map[uuid.UUID]*models.Conversation
	messages map[uuid.UUID][]*models.Message
	seq      map[uuid.UUID]int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		convs:    make(map[uuid.UUID]*models.Conversation),
		messages: make(map[uuid.UUID][]*models.Message),
		seq:      make(map[uuid.UUID]int64),
	}
}

func (r *MemoryRepo) Create(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.Status == "" {
		conv.Status = models.ConvStatusActive
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt

	cp := *conv
	r.convs[conv.ID] = &cp
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.convs[id]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepo) FindLatestByCustomer(_ context.Context, tenantID uuid.UUID, channel, customerIdentifier string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.Conversation
	for _, c := range r.convs {
		if c.TenantID != tenantID || c.Channel != channel || c.CustomerIdentifier != customerIdentifier {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *MemoryRepo) List(_ context.Context, tenantID uuid.UUID) ([]*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var convs []*models.Conversation
	for _, c := range r.convs {
		if c.TenantID == tenantID {
			cp := *c
			convs = append(convs, &cp)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convs[id]
	if !ok || c.TenantID != tenantID {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepo) AppendMessage(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	r.seq[msg.ConversationID]++
	msg.CreatedAt = time.Unix(0, r.seq[msg.ConversationID])

	cp := *msg
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], &cp)

	if c, ok := r.convs[msg.ConversationID]; ok {
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepo) ListMessages(_ context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]*models.Message, 0, len(r.messages[conversationID]))
	for _, m := range r.messages[conversationID] {
		cp := *m
		msgs = append(msgs, &cp)
	}
	return msgs, nil
}
