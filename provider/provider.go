// Package provider defines the durable storage abstraction used by pagestate.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed.
//
// The keyspace "pagestate:<ns>" is owned by pagestate. Foreign writes under
// these keys are treated as corruption by the snapshot decoder and deleted.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt is returned (wrapped) by Get when the stored value exists but
// cannot be turned back into the bytes that were Set. pagestate deletes such
// a value and starts from defaults.
var ErrCorrupt = errors.New("provider: corrupt value")

//go:generate mockgen -source=provider.go -destination=../internal/mocks/provider_mock.go -package=mocks

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 => no expiry). May ignore cost.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
