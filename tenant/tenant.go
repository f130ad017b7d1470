// Package tenant models the tenant-side webhook configuration Herald
// consumes: where to deliver and what secret to sign with.
//
// Herald does not own tenants. The host application either stores webhook
// configuration through tenant.Service (backed by the composite store) or
// supplies its own Resolver when tenant records live elsewhere.
package tenant

import (
	"context"

	"github.com/heraldhq/herald/internal/entity"
)

// Webhook is a tenant's outbound webhook configuration.
type Webhook struct {
	entity.Entity

	// TenantID identifies the owning tenant. Opaque to Herald.
	TenantID string `json:"tenant_id"`

	// URL is the delivery destination. An empty URL means delivery is
	// impossible and events for this tenant fail immediately.
	URL string `json:"url"`

	// Secret is the HMAC signing secret. Never serialized.
	Secret string `json:"-"`

	// Enabled gates delivery without discarding configuration.
	Enabled bool `json:"enabled"`
}

// Deliverable reports whether events can be delivered to this configuration.
func (w *Webhook) Deliverable() bool {
	return w != nil && w.Enabled && w.URL != ""
}

// Resolver looks up a tenant's webhook configuration at delivery time.
//
// Implementations must return ErrNotConfigured when the tenant has no
// configuration on record; the engine treats that the same as an empty URL.
type Resolver interface {
	WebhookConfig(ctx context.Context, tenantID string) (*Webhook, error)
}

// StaticResolver is a map-backed Resolver for tests and embedded use.
type StaticResolver map[string]*Webhook

// WebhookConfig implements Resolver.
func (r StaticResolver) WebhookConfig(_ context.Context, tenantID string) (*Webhook, error) {
	w, ok := r[tenantID]
	if !ok {
		return nil, ErrNotConfigured
	}
	return w, nil
}
