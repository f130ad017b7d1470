// Package bunstore implements the Herald store on the Bun ORM. It works
// against PostgreSQL and SQLite; pass a *bun.DB built with the matching
// dialect.
package bunstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	heraldstore "github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/tenant"
)

// compile-time interface check
var _ heraldstore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// NewPostgres wraps an open PostgreSQL *sql.DB with the pg dialect.
func NewPostgres(sqldb *sql.DB) *Store {
	return New(bun.NewDB(sqldb, pgdialect.New()))
}

// NewSQLite wraps an open SQLite *sql.DB with the sqlite dialect.
func NewSQLite(sqldb *sql.DB) *Store {
	return New(bun.NewDB(sqldb, sqlitedialect.New()))
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*webhookModel)(nil),
		(*eventModel)(nil),
		(*attemptLogModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_herald_events_idempotency ON herald_events (idempotency_key)",
		"CREATE INDEX IF NOT EXISTS idx_herald_events_tenant ON herald_events (tenant_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_herald_events_retryable ON herald_events (status, attempts)",
		"CREATE INDEX IF NOT EXISTS idx_herald_delivery_logs_event ON herald_delivery_logs (event_id, attempt_number)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Tenant Store ====================

func (s *Store) SaveWebhook(ctx context.Context, w *tenant.Webhook) error {
	m := toWebhookModel(w)
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("url = EXCLUDED.url").
		Set("secret = EXCLUDED.secret").
		Set("enabled = EXCLUDED.enabled").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetWebhook(ctx context.Context, tenantID string) (*tenant.Webhook, error) {
	m := new(webhookModel)
	err := s.db.NewSelect().
		Model(m).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrNotConfigured
		}
		return nil, err
	}
	return fromWebhookModel(m), nil
}

func (s *Store) DeleteWebhook(ctx context.Context, tenantID string) error {
	_, err := s.db.NewDelete().
		Model((*webhookModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	return err
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.WebhookEvent) error {
	m := toEventModel(evt)

	// ON CONFLICT DO NOTHING makes the idempotency gate race-free: exactly
	// one of any set of concurrent inserts with the same key wins.
	res, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (idempotency_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return event.ErrDuplicateKey
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.WebhookEvent, error) {
	m := new(eventModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", evtID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) UpdateEvent(ctx context.Context, evt *event.WebhookEvent) error {
	m := toEventModel(evt)
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, tenantID string, opts event.ListOpts) ([]*event.WebhookEvent, error) {
	var models []eventModel
	q := s.applyFilters(s.db.NewSelect().Model(&models), tenantID, opts)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.WebhookEvent, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) CountEvents(ctx context.Context, tenantID string, opts event.ListOpts) (int64, error) {
	count, err := s.applyFilters(s.db.NewSelect().Model((*eventModel)(nil)), tenantID, opts).Count(ctx)
	return int64(count), err
}

func (s *Store) applyFilters(q *bun.SelectQuery, tenantID string, opts event.ListOpts) *bun.SelectQuery {
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if opts.Type != "" {
		q = q.Where("event_type = ?", opts.Type)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.From != nil {
		q = q.Where("created_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("created_at <= ?", *opts.To)
	}
	return q
}

func (s *Store) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*event.WebhookEvent, error) {
	var models []eventModel
	q := s.db.NewSelect().
		Model(&models).
		Where("status IN (?)", bun.In([]string{
			string(event.StatusPending),
			string(event.StatusSending),
			string(event.StatusFailed),
		})).
		Where("attempts < ?", maxAttempts).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.WebhookEvent, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) EventStats(ctx context.Context, tenantID string) (*event.Stats, error) {
	var rows []struct {
		Status   string  `bun:"status"`
		Count    int64   `bun:"count"`
		Attempts float64 `bun:"attempts"`
	}
	q := s.db.NewSelect().
		Model((*eventModel)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(sum(attempts), 0) AS attempts").
		GroupExpr("status")
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}

	stats := &event.Stats{ByStatus: make(map[event.Status]int64)}
	var attempts float64
	for _, row := range rows {
		stats.TotalEvents += row.Count
		stats.ByStatus[event.Status(row.Status)] = row.Count
		attempts += row.Attempts
	}
	if stats.TotalEvents > 0 {
		stats.SuccessRate = float64(stats.ByStatus[event.StatusSent]) / float64(stats.TotalEvents)
		stats.AverageAttempts = attempts / float64(stats.TotalEvents)
	}
	return stats, nil
}

// ==================== Delivery Store ====================

func (s *Store) AppendLog(ctx context.Context, l *delivery.AttemptLog) error {
	m := toAttemptLogModel(l)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) ListLogs(ctx context.Context, evtID id.ID) ([]*delivery.AttemptLog, error) {
	var models []attemptLogModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("event_id = ?", evtID.String()).
		Order("attempt_number ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.AttemptLog, len(models))
	for i := range models {
		l, err := fromAttemptLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}
