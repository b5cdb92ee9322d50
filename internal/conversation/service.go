package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/models"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ResolveInput identifies the thread an inbound message belongs to.
// SessionID is the conversation ID handed back to web-chat clients;
// CustomerIdentifier is the phone number, email address, or generated
// web-session identity.
type ResolveInput struct {
	Channel            string
	CustomerIdentifier string
	CustomerName       string
	SessionID          *uuid.UUID
}

// Resolve finds the conversation for an inbound message, in order of
// preference: the session ID (when it names a conversation of this tenant
// and channel), then the customer's most recent thread on the channel in
// any status, then a fresh active conversation. A resolved thread that
// receives a new message reopens as active; handed-off threads stay with
// the human agent.
func (s *Service) Resolve(ctx context.Context, tenantID uuid.UUID, in ResolveInput) (*models.Conversation, error) {
	if in.SessionID != nil {
		conv, err := s.repo.GetByID(ctx, tenantID, *in.SessionID)
		if err == nil && conv.Channel == in.Channel {
			return s.reopen(ctx, conv)
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	conv, err := s.repo.FindLatestByCustomer(ctx, tenantID, in.Channel, in.CustomerIdentifier)
	if err == nil {
		return s.reopen(ctx, conv)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	conv = &models.Conversation{
		TenantID:           tenantID,
		Channel:            in.Channel,
		CustomerIdentifier: in.CustomerIdentifier,
		CustomerName:       in.CustomerName,
		Status:             models.ConvStatusActive,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) reopen(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	if conv.Status != models.ConvStatusResolved {
		return conv, nil
	}
	if err := s.repo.UpdateStatus(ctx, conv.TenantID, conv.ID, models.ConvStatusActive); err != nil {
		return nil, err
	}
	conv.Status = models.ConvStatusActive
	return conv, nil
}

// RecordExchange appends the customer message and the assistant reply as
// two ordered messages. The customer message always lands first; chunkIDs
// become the assistant message's citations.
func (s *Service) RecordExchange(ctx context.Context, conversationID uuid.UUID, customerText, assistantText string, chunkIDs []uuid.UUID) (customer, assistant *models.Message, err error) {
	customer = &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleCustomer,
		Content:        customerText,
	}
	if err := s.repo.AppendMessage(ctx, customer); err != nil {
		return nil, nil, fmt.Errorf("append customer message: %w", err)
	}

	assistant = &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantText,
		SourceChunkIDs: chunkIDs,
	}
	if err := s.repo.AppendMessage(ctx, assistant); err != nil {
		return nil, nil, fmt.Errorf("append assistant message: %w", err)
	}
	return customer, assistant, nil
}

// RecordChannelExchange is RecordExchange with the channel provider's
// message ID stamped on the customer message, so a retried delivery task
// can find the exchange it already persisted.
func (s *Service) RecordChannelExchange(ctx context.Context, conversationID uuid.UUID, providerMessageID, customerText, assistantText string, chunkIDs []uuid.UUID) error {
	meta, err := json.Marshal(map[string]string{"provider_message_id": providerMessageID})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	customer := &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleCustomer,
		Content:        customerText,
		Metadata:       meta,
	}
	if err := s.repo.AppendMessage(ctx, customer); err != nil {
		return fmt.Errorf("append customer message: %w", err)
	}

	assistant := &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantText,
		SourceChunkIDs: chunkIDs,
	}
	if err := s.repo.AppendMessage(ctx, assistant); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}
	return nil
}

// FindReplyByProviderID returns the assistant reply recorded for an inbound
// provider message, when an earlier attempt already persisted the exchange.
func (s *Service) FindReplyByProviderID(ctx context.Context, conversationID uuid.UUID, providerMessageID string) (string, bool, error) {
	if providerMessageID == "" {
		return "", false, nil
	}

	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return "", false, err
	}

	for i, m := range msgs {
		if m.Role != models.RoleCustomer || len(m.Metadata) == 0 {
			continue
		}
		var meta map[string]string
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			continue
		}
		if meta["provider_message_id"] != providerMessageID {
			continue
		}
		if i+1 < len(msgs) && msgs[i+1].Role == models.RoleAssistant {
			return msgs[i+1].Content, true, nil
		}
	}
	return "", false, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Conversation, error) {
	return s.repo.List(ctx, tenantID)
}

// Messages returns the full transcript in order, verifying tenant ownership
// first.
func (s *Service) Messages(ctx context.Context, tenantID, conversationID uuid.UUID) ([]*models.Message, error) {
	if _, err := s.repo.GetByID(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID)
}

// History returns the last n messages as role/content pairs for prompt
// assembly, oldest first.
func (s *Service) History(ctx context.Context, conversationID uuid.UUID, n int) ([]*models.Message, error) {
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

// SetStatus transitions a conversation; used for resolve and human
// handoff.
func (s *Service) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	switch status {
	case models.ConvStatusActive, models.ConvStatusResolved, models.ConvStatusHandedOff:
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	return s.repo.UpdateStatus(ctx, tenantID, id, status)
}
