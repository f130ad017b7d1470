package tenant

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/signature"
)

// Input is the configuration payload for a tenant webhook.
type Input struct {
	// TenantID identifies the tenant being configured.
	TenantID string `json:"tenant_id"`

	// URL is the webhook delivery destination.
	URL string `json:"url"`

	// Secret is the HMAC signing secret. Auto-generated when empty.
	Secret string `json:"secret,omitempty"`
}

// Service provides tenant webhook configuration management.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a tenant configuration service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Configure creates or replaces a tenant's webhook configuration. A fresh
// signing secret is generated unless one is supplied; existing secrets are
// preserved when reconfiguring only the URL.
func (svc *Service) Configure(ctx context.Context, in Input) (*Webhook, error) {
	if in.TenantID == "" {
		return nil, &ValidationError{Field: "tenant_id", Message: "required"}
	}
	if _, err := url.ParseRequestURI(in.URL); err != nil {
		return nil, &ValidationError{Field: "url", Message: "invalid URL"}
	}

	secret := in.Secret
	if secret == "" {
		if existing, err := svc.store.GetWebhook(ctx, in.TenantID); err == nil {
			secret = existing.Secret
		}
	}
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	w := &Webhook{
		Entity:   entity.New(),
		TenantID: in.TenantID,
		URL:      in.URL,
		Secret:   secret,
		Enabled:  true,
	}

	if err := svc.store.SaveWebhook(ctx, w); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "webhook configured", "tenant_id", in.TenantID)
	return w, nil
}

// Get returns a tenant's webhook configuration.
func (svc *Service) Get(ctx context.Context, tenantID string) (*Webhook, error) {
	return svc.store.GetWebhook(ctx, tenantID)
}

// SetEnabled pauses or resumes delivery for a tenant without discarding
// their configuration.
func (svc *Service) SetEnabled(ctx context.Context, tenantID string, enabled bool) (*Webhook, error) {
	w, err := svc.store.GetWebhook(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	w.Enabled = enabled
	w.Touch()
	if err := svc.store.SaveWebhook(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// RotateSecret generates a new signing secret for a tenant. The previous
// secret is invalid immediately; tenants must update their verification key.
func (svc *Service) RotateSecret(ctx context.Context, tenantID string) (string, error) {
	w, err := svc.store.GetWebhook(ctx, tenantID)
	if err != nil {
		return "", err
	}

	w.Secret = signature.GenerateSecret()
	w.Touch()
	if err := svc.store.SaveWebhook(ctx, w); err != nil {
		return "", err
	}

	svc.logger.InfoContext(ctx, "webhook secret rotated", "tenant_id", tenantID)
	return w.Secret, nil
}

// Remove deletes a tenant's webhook configuration. Pending events for the
// tenant will fail on their next attempt.
func (svc *Service) Remove(ctx context.Context, tenantID string) error {
	return svc.store.DeleteWebhook(ctx, tenantID)
}

// ValidationError indicates invalid configuration input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "tenant webhook validation: " + e.Field + ": " + e.Message
}
