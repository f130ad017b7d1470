package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/tenant"
)

type webhookModel struct {
	bun.BaseModel `bun:"table:herald_webhooks,alias:hw"`

	TenantID  string    `bun:"tenant_id,pk"`
	URL       string    `bun:"url,notnull"`
	Secret    string    `bun:"secret,notnull"`
	Enabled   bool      `bun:"enabled,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
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

type eventModel struct {
	bun.BaseModel `bun:"table:herald_events,alias:he"`

	ID             string          `bun:"id,pk"`
	TenantID       string          `bun:"tenant_id,notnull"`
	EventType      string          `bun:"event_type,notnull"`
	Payload        json.RawMessage `bun:"payload,type:jsonb"`
	Status         string          `bun:"status,notnull"`
	Attempts       int             `bun:"attempts,notnull"`
	ResponseCode   *int            `bun:"response_code"`
	ResponseBody   string          `bun:"response_body"`
	LastError      string          `bun:"last_error"`
	IdempotencyKey string          `bun:"idempotency_key,notnull,unique"`
	SentAt         *time.Time      `bun:"sent_at"`
	SucceededAt    *time.Time      `bun:"succeeded_at"`
	LastAttemptAt  *time.Time      `bun:"last_attempt_at"`
	CreatedAt      time.Time       `bun:"created_at,notnull"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull"`
}

func toEventModel(evt *event.WebhookEvent) *eventModel {
	payload, _ := json.Marshal(evt.Payload) //nolint:errcheck // validated at enqueue
	return &eventModel{
		ID:             evt.ID.String(),
		TenantID:       evt.TenantID,
		EventType:      evt.Type,
		Payload:        payload,
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

type attemptLogModel struct {
	bun.BaseModel `bun:"table:herald_delivery_logs,alias:hdl"`

	ID              string            `bun:"id,pk"`
	EventID         string            `bun:"event_id,notnull"`
	AttemptNumber   int               `bun:"attempt_number,notnull"`
	RequestURL      string            `bun:"request_url"`
	RequestHeaders  map[string]string `bun:"request_headers,type:jsonb"`
	RequestBody     string            `bun:"request_body"`
	ResponseCode    *int              `bun:"response_code"`
	ResponseHeaders map[string]string `bun:"response_headers,type:jsonb"`
	ResponseBody    string            `bun:"response_body"`
	ErrorMessage    string            `bun:"error_message"`
	DurationMs      int               `bun:"duration_ms"`
	CreatedAt       time.Time         `bun:"created_at,notnull"`
}

func toAttemptLogModel(l *delivery.AttemptLog) *attemptLogModel {
	return &attemptLogModel{
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

func fromAttemptLogModel(m *attemptLogModel) (*delivery.AttemptLog, error) {
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
