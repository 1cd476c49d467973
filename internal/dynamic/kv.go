// Package dynamic syncs the model registry with an external key-value
// store. Dynamic registrations live under a key prefix with a TTL; the
// registry is rebuilt from static config plus whatever the store currently
// holds. When the store is unreachable the router degrades to static
// configuration.
package dynamic

import (
	"context"
	"errors"
	"time"
)

// KeyPrefix namespaces dynamic model entries in the store.
const KeyPrefix = "dynamic_model:"

// RegistrationTTL bounds how long a dynamic registration survives without
// re-registration.
const RegistrationTTL = 24 * time.Hour

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// ErrStoreUnavailable is returned when the external store cannot be
// reached. Read paths degrade to static config; mutations fail.
var ErrStoreUnavailable = errors.New("dynamic model store unavailable")

// KV is the store surface the registry adapter needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}
