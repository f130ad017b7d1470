package mongo

import (
	"fmt"
	"time"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/tenant"
)

// --- Webhook configuration models ---

type webhookModel struct {
	TenantID  string    `bson:"_id"`
	URL       string    `bson:"url"`
	Secret    string    `bson:"secret"`
	Enabled   bool      `bson:"enabled"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
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

// --- Event models ---

type eventModel struct {
	ID             string     `bson:"_id"`
	TenantID       string     `bson:"tenant_id"`
	EventType      string     `bson:"event_type"`
	Payload        any        `bson:"payload,omitempty"`
	Status         string     `bson:"status"`
	Attempts       int        `bson:"attempts"`
	ResponseCode   *int       `bson:"response_code,omitempty"`
	ResponseBody   string     `bson:"response_body,omitempty"`
	LastError      string     `bson:"last_error,omitempty"`
	IdempotencyKey string     `bson:"idempotency_key"`
	SentAt         *time.Time `bson:"sent_at,omitempty"`
	SucceededAt    *time.Time `bson:"succeeded_at,omitempty"`
	LastAttemptAt  *time.Time `bson:"last_attempt_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
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

// --- Attempt log models ---

type logModel struct {
	ID              string            `bson:"_id"`
	EventID         string            `bson:"event_id"`
	AttemptNumber   int               `bson:"attempt_number"`
	RequestURL      string            `bson:"request_url"`
	RequestHeaders  map[string]string `bson:"request_headers,omitempty"`
	RequestBody     string            `bson:"request_body,omitempty"`
	ResponseCode    *int              `bson:"response_code,omitempty"`
	ResponseHeaders map[string]string `bson:"response_headers,omitempty"`
	ResponseBody    string            `bson:"response_body,omitempty"`
	ErrorMessage    string            `bson:"error_message,omitempty"`
	DurationMs      int               `bson:"duration_ms"`
	CreatedAt       time.Time         `bson:"created_at"`
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
