package tenant

import "context"

// Store defines the persistence contract for tenant webhook configuration.
//
// A store-backed Herald uses its Store as the delivery-time Resolver; hosts
// that keep webhook settings on their own tenant records supply a custom
// Resolver instead and this interface goes unused.
type Store interface {
	// SaveWebhook creates or replaces a tenant's webhook configuration.
	SaveWebhook(ctx context.Context, w *Webhook) error

	// GetWebhook returns a tenant's webhook configuration, or
	// ErrNotConfigured.
	GetWebhook(ctx context.Context, tenantID string) (*Webhook, error)

	// DeleteWebhook removes a tenant's webhook configuration.
	DeleteWebhook(ctx context.Context, tenantID string) error
}
