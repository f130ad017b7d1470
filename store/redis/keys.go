package redis

// Key prefixes for primary entity storage.
const (
	prefixEvent   = "herald:evt:"
	prefixWebhook = "herald:wh:"
	prefixLogs    = "herald:l:evt:" // + event ID, list of attempt logs
)

// Key prefixes for unique indexes.
const (
	uniqueEventIdem = "herald:u:evt:idem:"
)

// Sorted set indexes, scored by event creation time.
const (
	zEventAll       = "herald:z:evt:all"
	zEventTenant    = "herald:z:evt:tenant:" // + tenant ID
	zEventRetryable = "herald:z:evt:retryable"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
