package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald/tenant"
)

// SaveWebhook upserts a tenant's webhook configuration.
func (s *Store) SaveWebhook(ctx context.Context, w *tenant.Webhook) error {
	_, err := s.db.Collection(colWebhooks).ReplaceOne(ctx,
		bson.M{"_id": w.TenantID},
		toWebhookModel(w),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("herald/mongo: save webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a tenant's webhook configuration.
func (s *Store) GetWebhook(ctx context.Context, tenantID string) (*tenant.Webhook, error) {
	var m webhookModel
	err := s.db.Collection(colWebhooks).
		FindOne(ctx, bson.M{"_id": tenantID}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tenant.ErrNotConfigured
		}
		return nil, fmt.Errorf("herald/mongo: get webhook: %w", err)
	}
	return fromWebhookModel(&m), nil
}

// DeleteWebhook removes a tenant's webhook configuration.
func (s *Store) DeleteWebhook(ctx context.Context, tenantID string) error {
	if _, err := s.db.Collection(colWebhooks).DeleteOne(ctx, bson.M{"_id": tenantID}); err != nil {
		return fmt.Errorf("herald/mongo: delete webhook: %w", err)
	}
	return nil
}
