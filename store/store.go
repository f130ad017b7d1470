// Package store defines the composite persistence interface for Herald and
// hosts the bundled backends (in-memory, Bun/SQL, Redis, MongoDB).
package store

import (
	"context"
	"errors"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/tenant"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is the complete persistence interface Herald requires: tenant
// webhook configuration, webhook events, and delivery attempt logs.
//
// All bundled backends implement it; hosts with bespoke persistence
// implement the per-concern interfaces and embed them.
type Store interface {
	tenant.Store
	event.Store
	delivery.Store

	// Migrate creates or updates backing schema (tables, indexes,
	// collections). Idempotent; called once from Herald startup.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
