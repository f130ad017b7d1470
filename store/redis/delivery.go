package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/id"
)

// logModel is the JSON representation of one attempt log. Logs live in a
// per-event Redis list, appended in attempt order.
type logModel struct {
	ID              string            `json:"id"`
	EventID         string            `json:"event_id"`
	AttemptNumber   int               `json:"attempt_number"`
	RequestURL      string            `json:"request_url"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseCode    *int              `json:"response_code,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	DurationMs      int               `json:"duration_ms"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toLogModel(l *delivery.AttemptLog) *logModel {
	return &logModel{
		ID:              l.ID.String(),
		EventID:         l.EventID.String(),
		AttemptNumber:   l.AttemptNumber,
		RequestURL:      l.RequestURL,
		RequestHeaders:  l.RequestHeaders,
		RequestBody:     l.RequestBody,
		ResponseCode:    l.ResponseCode,
		ResponseHeaders: l.ResponseHeaders,
		ResponseBody:    l.ResponseBody,
		ErrorMessage:    l.ErrorMessage,
		DurationMs:      l.DurationMs,
		CreatedAt:       l.CreatedAt,
	}
}

func fromLogModel(m *logModel) (*delivery.AttemptLog, error) {
	logID, err := id.ParseLogID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse log ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &delivery.AttemptLog{
		ID:              logID,
		EventID:         evtID,
		AttemptNumber:   m.AttemptNumber,
		RequestURL:      m.RequestURL,
		RequestHeaders:  m.RequestHeaders,
		RequestBody:     m.RequestBody,
		ResponseCode:    m.ResponseCode,
		ResponseHeaders: m.ResponseHeaders,
		ResponseBody:    m.ResponseBody,
		ErrorMessage:    m.ErrorMessage,
		DurationMs:      m.DurationMs,
		CreatedAt:       m.CreatedAt,
	}, nil
}

func (s *Store) AppendLog(ctx context.Context, l *delivery.AttemptLog) error {
	raw, err := json.Marshal(toLogModel(l))
	if err != nil {
		return fmt.Errorf("herald/redis: marshal log: %w", err)
	}
	if err := s.rdb.RPush(ctx, prefixLogs+l.EventID.String(), raw).Err(); err != nil {
		return fmt.Errorf("herald/redis: append log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, evtID id.ID) ([]*delivery.AttemptLog, error) {
	raws, err := s.rdb.LRange(ctx, prefixLogs+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list logs: %w", err)
	}

	result := make([]*delivery.AttemptLog, 0, len(raws))
	for _, raw := range raws {
		var m logModel
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("herald/redis: decode log: %w", err)
		}
		l, err := fromLogModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AttemptNumber < result[j].AttemptNumber
	})
	return result, nil
}
