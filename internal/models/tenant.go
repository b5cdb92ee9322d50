package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation boundary: every document, chunk and conversation
// belongs to exactly one tenant, and every query is filtered by tenant ID.
type Tenant struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Slug           string    `json:"slug" db:"slug"`
	Persona        string    `json:"persona" db:"persona"`
	WhatsAppNumber string    `json:"whatsapp_number,omitempty" db:"whatsapp_number"`
	InboundEmail   string    `json:"inbound_email,omitempty" db:"inbound_email"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type APIKey struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TenantID   uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	KeyHash    string     `json:"-" db:"key_hash"`
	Name       string     `json:"name" db:"name"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

const DefaultPersona = "You are a helpful customer support agent. Be concise and friendly."
