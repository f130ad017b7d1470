package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
)

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	EventType      string     `json:"event_type"`
	Payload        any        `json:"payload,omitempty"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	ResponseCode   *int       `json:"response_code,omitempty"`
	ResponseBody   string     `json:"response_body,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	IdempotencyKey string     `json:"idempotency_key"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	SucceededAt    *time.Time `json:"succeeded_at,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toEventModel(evt *event.WebhookEvent) *eventModel {
	return &eventModel{
		ID:             evt.ID.String(),
		TenantID:       evt.TenantID,
		EventType:      evt.Type,
		Payload:        evt.Payload,
		Status:         string(evt.Status),
		Attempts:       evt.Attempts,
		ResponseCode:   evt.ResponseCode,
		ResponseBody:   evt.ResponseBody,
		LastError:      evt.LastError,
		IdempotencyKey: evt.IdempotencyKey,
		SentAt:         evt.SentAt,
		SucceededAt:    evt.SucceededAt,
		LastAttemptAt:  evt.LastAttemptAt,
		CreatedAt:      evt.CreatedAt,
		UpdatedAt:      evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.WebhookEvent, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.WebhookEvent{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             evtID,
		TenantID:       m.TenantID,
		Type:           m.EventType,
		Payload:        m.Payload,
		Status:         event.Status(m.Status),
		Attempts:       m.Attempts,
		ResponseCode:   m.ResponseCode,
		ResponseBody:   m.ResponseBody,
		LastError:      m.LastError,
		IdempotencyKey: m.IdempotencyKey,
		SentAt:         m.SentAt,
		SucceededAt:    m.SucceededAt,
		LastAttemptAt:  m.LastAttemptAt,
	}, nil
}

func (s *Store) CreateEvent(ctx context.Context, evt *event.WebhookEvent) error {
	m := toEventModel(evt)
	key := entityKey(prefixEvent, m.ID)

	// SET NX is the storage-level idempotency gate: exactly one concurrent
	// creator claims the key.
	ok, err := s.rdb.SetNX(ctx, uniqueEventIdem+m.IdempotencyKey, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: create event idem check: %w", err)
	}
	if !ok {
		return event.ErrDuplicateKey
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("herald/redis: create event: %w", err)
	}

	score := scoreFromTime(m.CreatedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zEventAll, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zEventTenant+m.TenantID, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zEventRetryable, goredis.Z{Score: score, Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: create event indexes: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, event.ErrNotFound
		}
		return nil, fmt.Errorf("herald/redis: get event: %w", err)
	}
	return fromEventModel(&m)
}

func (s *Store) UpdateEvent(ctx context.Context, evt *event.WebhookEvent) error {
	key := entityKey(prefixEvent, evt.ID.String())

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: update event: %w", err)
	}
	if exists == 0 {
		return event.ErrNotFound
	}

	m := toEventModel(evt)
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("herald/redis: update event: %w", err)
	}

	// Sent events leave the retryable index; any other status (re)joins it.
	// Attempts are filtered at read time, where the cap is known.
	if evt.Status == event.StatusSent {
		if err := s.rdb.ZRem(ctx, zEventRetryable, m.ID).Err(); err != nil {
			return fmt.Errorf("herald/redis: update retryable index: %w", err)
		}
		return nil
	}
	if err := s.rdb.ZAdd(ctx, zEventRetryable, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("herald/redis: update retryable index: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, tenantID string, opts event.ListOpts) ([]*event.WebhookEvent, error) {
	indexKey := zEventAll
	if tenantID != "" {
		indexKey = zEventTenant + tenantID
	}

	matched, err := s.loadMatching(ctx, indexKey, opts)
	if err != nil {
		return nil, err
	}
	return applyPagination(matched, opts.Offset, opts.Limit), nil
}

func (s *Store) CountEvents(ctx context.Context, tenantID string, opts event.ListOpts) (int64, error) {
	indexKey := zEventAll
	if tenantID != "" {
		indexKey = zEventTenant + tenantID
	}
	matched, err := s.loadMatching(ctx, indexKey, opts)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// loadMatching loads events from a time-scored index, newest first, applying
// the type/status filters client-side.
func (s *Store) loadMatching(ctx context.Context, indexKey string, opts event.ListOpts) ([]*event.WebhookEvent, error) {
	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, indexKey, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list events: %w", err)
	}

	result := make([]*event.WebhookEvent, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Type != "" && m.EventType != opts.Type {
			continue
		}
		if opts.Status != "" && m.Status != string(opts.Status) {
			continue
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, nil
}

func (s *Store) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*event.WebhookEvent, error) {
	ids, err := s.rdb.ZRange(ctx, zEventRetryable, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list retryable: %w", err)
	}

	result := make([]*event.WebhookEvent, 0, len(ids))
	for _, evtID := range ids { // oldest first
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, evtID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if m.Status == string(event.StatusSent) || m.Attempts >= maxAttempts {
			continue
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) EventStats(ctx context.Context, tenantID string) (*event.Stats, error) {
	indexKey := zEventAll
	if tenantID != "" {
		indexKey = zEventTenant + tenantID
	}
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: event stats: %w", err)
	}

	stats := &event.Stats{ByStatus: make(map[event.Status]int64)}
	var attempts int64
	for _, evtID := range ids {
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, evtID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		stats.TotalEvents++
		stats.ByStatus[event.Status(m.Status)]++
		attempts += int64(m.Attempts)
	}
	if stats.TotalEvents > 0 {
		stats.SuccessRate = float64(stats.ByStatus[event.StatusSent]) / float64(stats.TotalEvents)
		stats.AverageAttempts = float64(attempts) / float64(stats.TotalEvents)
	}
	return stats, nil
}
