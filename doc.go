// Package herald provides an embeddable outbound webhook notification engine
// for multi-tenant platforms.
//
// Herald is a library, not a service. Import it into your billing or SaaS
// application to notify tenants of business events (subscription created,
// payment succeeded, ...) with idempotent intake, signed delivery, per-attempt
// audit logging, backoff retries, and manual replay.
//
// Key features:
//   - Idempotency-keyed intake: retried provider webhooks never produce
//     duplicate tenant notifications
//   - HMAC-SHA256 signature over the canonical request body on every delivery
//   - Append-only attempt log capturing the exact request, response, and timing
//   - Backoff-gated retry sweep with a bounded worker pool
//   - Composable store pattern with multiple backends (Bun/SQL, Redis, Mongo, Memory)
//   - Manual retry for exhausted events via the management API
//
// Quick start:
//
//	h, err := herald.New(
//	    herald.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h.Tenants().Configure(ctx, tenant.Input{
//	    TenantID: "tenant_123",
//	    URL:      "https://example.com/hooks",
//	})
//
//	h.Enqueue(ctx, "tenant_123", "payment.succeeded",
//	    map[string]any{"payment_id": "pay_01h..."},
//	    "stripe_evt_1abc")
package herald
