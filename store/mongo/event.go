package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
)

// CreateEvent persists an event. The unique idempotency_key index turns a
// duplicate insert into event.ErrDuplicateKey.
func (s *Store) CreateEvent(ctx context.Context, evt *event.WebhookEvent) error {
	if _, err := s.db.Collection(colEvents).InsertOne(ctx, toEventModel(evt)); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return event.ErrDuplicateKey
		}
		return fmt.Errorf("herald/mongo: create event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	var m eventModel
	err := s.db.Collection(colEvents).
		FindOne(ctx, bson.M{"_id": evtID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, event.ErrNotFound
		}
		return nil, fmt.Errorf("herald/mongo: get event: %w", err)
	}
	return fromEventModel(&m)
}

// UpdateEvent replaces the stored event document.
func (s *Store) UpdateEvent(ctx context.Context, evt *event.WebhookEvent) error {
	res, err := s.db.Collection(colEvents).
		ReplaceOne(ctx, bson.M{"_id": evt.ID.String()}, toEventModel(evt))
	if err != nil {
		return fmt.Errorf("herald/mongo: update event: %w", err)
	}
	if res.MatchedCount == 0 {
		return event.ErrNotFound
	}
	return nil
}

// ListEvents returns a tenant's events, newest first.
func (s *Store) ListEvents(ctx context.Context, tenantID string, opts event.ListOpts) ([]*event.WebhookEvent, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colEvents).Find(ctx, eventFilter(tenantID, opts), findOpts)
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: list events: %w", err)
	}
	var models []eventModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("herald/mongo: list events: %w", err)
	}

	result := make([]*event.WebhookEvent, 0, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, nil
}

// CountEvents returns the number of events matching the filter.
func (s *Store) CountEvents(ctx context.Context, tenantID string, opts event.ListOpts) (int64, error) {
	n, err := s.db.Collection(colEvents).CountDocuments(ctx, eventFilter(tenantID, opts))
	if err != nil {
		return 0, fmt.Errorf("herald/mongo: count events: %w", err)
	}
	return n, nil
}

func eventFilter(tenantID string, opts event.ListOpts) bson.M {
	filter := bson.M{}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	if opts.Type != "" {
		filter["event_type"] = opts.Type
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}
		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}
		filter["created_at"] = dateFilter
	}
	return filter
}

// ListRetryable returns retry-sweep candidates, oldest first.
func (s *Store) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*event.WebhookEvent, error) {
	filter := bson.M{
		"status": bson.M{"$in": []string{
			string(event.StatusPending),
			string(event.StatusSending),
			string(event.StatusFailed),
		}},
		"attempts": bson.M{"$lt": maxAttempts},
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(colEvents).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: list retryable: %w", err)
	}
	var models []eventModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("herald/mongo: list retryable: %w", err)
	}

	result := make([]*event.WebhookEvent, 0, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, nil
}

// EventStats aggregates delivery outcomes for a tenant.
func (s *Store) EventStats(ctx context.Context, tenantID string) (*event.Stats, error) {
	match := bson.M{}
	if tenantID != "" {
		match["tenant_id"] = tenantID
	}
	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":      "$status",
			"count":    bson.M{"$sum": 1},
			"attempts": bson.M{"$sum": "$attempts"},
		}},
	}

	cur, err := s.db.Collection(colEvents).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: event stats: %w", err)
	}
	var rows []struct {
		Status   string `bson:"_id"`
		Count    int64  `bson:"count"`
		Attempts int64  `bson:"attempts"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("herald/mongo: event stats: %w", err)
	}

	stats := &event.Stats{ByStatus: make(map[event.Status]int64)}
	var attempts int64
	for _, row := range rows {
		stats.TotalEvents += row.Count
		stats.ByStatus[event.Status(row.Status)] = row.Count
		attempts += row.Attempts
	}
	if stats.TotalEvents > 0 {
		stats.SuccessRate = float64(stats.ByStatus[event.StatusSent]) / float64(stats.TotalEvents)
		stats.AverageAttempts = float64(attempts) / float64(stats.TotalEvents)
	}
	return stats, nil
}
