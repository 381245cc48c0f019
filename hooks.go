package pagestate

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
type Hooks interface {
	// The snapshot could not be used at startup; the store starts from defaults.
	// reason ∈ {"read_error", "corrupt", "too_large"}
	SnapshotLoadFailed(storageKey, reason string, err error)

	// A loaded record did not decode with its page codec and was replaced by
	// the page default. reason ∈ {"decode_error"}
	RecordDropped(pageKey, reason string)

	// Writing the snapshot failed; in-memory state stays authoritative.
	PersistFailed(storageKey string, err error)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// The snapshot matched the last written one, nothing was sent.
	PersistSkipped(storageKey string)

	// SetIfVersion observed an outdated version and did not write.
	StaleWriteSkipped(pageKey string, observed, current uint64)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SnapshotLoadFailed(string, string, error) {}
func (NopHooks) RecordDropped(string, string)             {}
func (NopHooks) PersistFailed(string, error)              {}
func (NopHooks) ProviderSetRejected(string)               {}
func (NopHooks) PersistSkipped(string)                    {}
func (NopHooks) StaleWriteSkipped(string, uint64, uint64) {}
