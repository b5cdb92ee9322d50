package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation is a thread keyed by (tenant, channel, customer identifier).
type Conversation struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	TenantID           uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Channel            string    `json:"channel" db:"channel"`
	CustomerIdentifier string    `json:"customer_identifier" db:"customer_identifier"`
	CustomerName       string    `json:"customer_name,omitempty" db:"customer_name"`
	Status             string    `json:"status" db:"status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one turn in a conversation, immutable once created and ordered
// by creation time. SourceChunkIDs are weak citation references to the chunks
// that grounded an assistant reply; they never block chunk deletion.
type Message struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	ConversationID uuid.UUID       `json:"conversation_id" db:"conversation_id"`
	Role           string          `json:"role" db:"role"`
	Content        string          `json:"content" db:"content"`
	SourceChunkIDs []uuid.UUID     `json:"source_chunk_ids,omitempty" db:"source_chunk_ids"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

const (
	ConvStatusActive    = "active"
	ConvStatusResolved  = "resolved"
	ConvStatusHandedOff = "handed_off"
)

const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
