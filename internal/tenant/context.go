package tenant

import (
	"context"

	"github.com/supportflow/backend/internal/models"
)

type ctxKey string

const tenantKey ctxKey = "tenant"

func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// FromContext returns the authenticated tenant, or nil when the request was
// not tenant-scoped.
func FromContext(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(tenantKey).(*models.Tenant)
	return t
}
