// Package catalog holds the registry of webhook event types a platform can
// emit, with optional JSON Schema payload validation.
package catalog

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownType is returned when looking up an unregistered event type.
var ErrUnknownType = errors.New("catalog: unknown event type")

// Catalog is an in-memory, concurrency-safe registry of event type
// definitions.
type Catalog struct {
	mu        sync.RWMutex
	types     map[string]Definition
	validator *Validator
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		types:     make(map[string]Definition),
		validator: NewValidator(),
	}
}

// Default returns a catalog preloaded with the billing platform's event
// types.
func Default() *Catalog {
	c := New()
	for _, def := range builtinTypes {
		c.Register(def)
	}
	return c
}

// Register adds or replaces an event type definition.
func (c *Catalog) Register(def Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[def.Name] = def
}

// Get returns an event type definition by name.
func (c *Catalog) Get(name string) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.types[name]
	if !ok {
		return Definition{}, ErrUnknownType
	}
	return def, nil
}

// List returns all registered definitions sorted by name.
func (c *Catalog) List() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Definition, 0, len(c.types))
	for _, def := range c.types {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// ValidatePayload checks payload data against the named type's schema.
// Unknown types return ErrUnknownType; types without a schema accept any
// payload.
func (c *Catalog) ValidatePayload(name string, data any) error {
	def, err := c.Get(name)
	if err != nil {
		return err
	}
	if len(def.Schema) == 0 {
		return nil
	}
	return c.validator.Validate(def.Schema, data)
}

// builtinTypes are the event types the billing platform emits.
var builtinTypes = []Definition{
	{Name: "subscription.created", Description: "A new subscription was created via checkout"},
	{Name: "subscription.updated", Description: "A subscription was updated (status, plan, etc.)"},
	{Name: "subscription.deleted", Description: "A subscription was canceled or deleted"},
	{Name: "subscription.cancelled", Description: "A subscription was cancelled by the customer"},
	{Name: "subscription.not_renewing", Description: "A subscription was set to not renew at period end"},
	{Name: "payment.succeeded", Description: "A payment was successfully processed"},
	{Name: "payment.failed", Description: "A payment attempt failed"},
	{Name: "customer.created", Description: "A new customer was created"},
	{Name: "customer.updated", Description: "A customer was updated"},
}
