package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/id"
)

// AppendLog persists one attempt log.
func (s *Store) AppendLog(ctx context.Context, l *delivery.AttemptLog) error {
	if _, err := s.db.Collection(colLogs).InsertOne(ctx, toLogModel(l)); err != nil {
		return fmt.Errorf("herald/mongo: append log: %w", err)
	}
	return nil
}

// ListLogs returns all logs for an event ordered by attempt number.
func (s *Store) ListLogs(ctx context.Context, evtID id.ID) ([]*delivery.AttemptLog, error) {
	cur, err := s.db.Collection(colLogs).Find(ctx,
		bson.M{"event_id": evtID.String()},
		options.Find().SetSort(bson.D{{Key: "attempt_number", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: list logs: %w", err)
	}
	var models []logModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("herald/mongo: list logs: %w", err)
	}

	result := make([]*delivery.AttemptLog, 0, len(models))
	for i := range models {
		l, err := fromLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}
