// Package conversation manages support threads and their message history.
package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/models"
)

var ErrNotFound = errors.New("conversation not found")

// Repository persists conversations and messages. Messages are append-only
// and returned in creation order.
type Repository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error)

	// FindLatestByCustomer returns the most recent conversation for the
	// customer on the given channel, regardless of status, or ErrNotFound.
	FindLatestByCustomer(ctx context.Context, tenantID uuid.UUID, channel, customerIdentifier string) (*models.Conversation, error)

	List(ctx context.Context, tenantID uuid.UUID) ([]*models.Conversation, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error

	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
}
