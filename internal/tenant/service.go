// Package tenant resolves workspaces and carries the authenticated tenant
// through request contexts. Every data access in the system is scoped to a
// tenant resolved here.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportflow/backend/internal/cache"
	"github.com/supportflow/backend/internal/models"
)

var ErrNotFound = errors.New("tenant not found")

const cacheTTL = 5 * time.Minute

type Service struct {
	db    *pgxpool.Pool
	cache *cache.Cache
}

// NewService creates a tenant service. cache may be nil; lookups then always
// hit the database.
func NewService(db *pgxpool.Pool, c *cache.Cache) *Service {
	return &Service{db: db, cache: c}
}

const tenantCols = "id, name, slug, persona, whatsapp_number, inbound_email, created_at, updated_at"

func (s *Service) scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Persona, &t.WhatsAppNumber, &t.InboundEmail, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if s.cache != nil {
		var t models.Tenant
		if err := s.cache.Get(ctx, "tenant:"+id.String(), &t); err == nil {
			return &t, nil
		}
	}

	t, err := s.scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE id = $1", id))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, "tenant:"+id.String(), t, cacheTTL)
	}
	return t, nil
}

// GetByAPIKeyHash resolves the tenant owning an API key, by the key's
// sha256 hex hash. Expired keys resolve to ErrNotFound.
func (s *Service) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Tenant, error) {
	var tenantID uuid.UUID
	var keyID uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id FROM api_keys
		 WHERE key_hash = $1 AND (expires_at IS NULL OR expires_at > now())`,
		keyHash,
	).Scan(&keyID, &tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.db.Exec(ctx, "UPDATE api_keys SET last_used_at = now() WHERE id = $1", keyID)
	}()

	return s.GetByID(ctx, tenantID)
}

// GetByWhatsAppNumber routes inbound WhatsApp messages: the Twilio "To"
// number identifies the workspace.
func (s *Service) GetByWhatsAppNumber(ctx context.Context, number string) (*models.Tenant, error) {
	return s.scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE whatsapp_number = $1", number))
}

// GetByInboundEmail routes inbound email by the recipient address.
func (s *Service) GetByInboundEmail(ctx context.Context, address string) (*models.Tenant, error) {
	return s.scanTenant(s.db.QueryRow(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE inbound_email = $1", address))
}

// Persona returns the tenant's system persona, falling back to the default
// when none is configured.
func Persona(t *models.Tenant) string {
	if t != nil && t.Persona != "" {
		return t.Persona
	}
	return models.DefaultPersona
}
