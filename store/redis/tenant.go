package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/tenant"
)

// webhookModel is the JSON representation stored in Redis. The secret is
// stored here; tenant.Webhook excludes it from its own serialization.
type webhookModel struct {
	TenantID  string    `json:"tenant_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWebhookModel(w *tenant.Webhook) *webhookModel {
	return &webhookModel{
		TenantID:  w.TenantID,
		URL:       w.URL,
		Secret:    w.Secret,
		Enabled:   w.Enabled,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func fromWebhookModel(m *webhookModel) *tenant.Webhook {
	return &tenant.Webhook{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID: m.TenantID,
		URL:      m.URL,
		Secret:   m.Secret,
		Enabled:  m.Enabled,
	}
}

func (s *Store) SaveWebhook(ctx context.Context, w *tenant.Webhook) error {
	if err := s.setEntity(ctx, entityKey(prefixWebhook, w.TenantID), toWebhookModel(w)); err != nil {
		return fmt.Errorf("herald/redis: save webhook: %w", err)
	}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, tenantID string) (*tenant.Webhook, error) {
	var m webhookModel
	if err := s.getEntity(ctx, entityKey(prefixWebhook, tenantID), &m); err != nil {
		if isRedisNil(err) {
			return nil, tenant.ErrNotConfigured
		}
		return nil, fmt.Errorf("herald/redis: get webhook: %w", err)
	}
	return fromWebhookModel(&m), nil
}

func (s *Store) DeleteWebhook(ctx context.Context, tenantID string) error {
	if err := s.rdb.Del(ctx, entityKey(prefixWebhook, tenantID)).Err(); err != nil {
		return fmt.Errorf("herald/redis: delete webhook: %w", err)
	}
	return nil
}
