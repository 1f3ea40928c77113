package collcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "epoch_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// One batched backing-source call is about to be issued for the missing
	// subset of a GetMany.
	BatchFetch(region string, missing int)

	// A caller joined an in-flight computation instead of fetching (sync).
	FlightJoined(storageKey string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Epoch store errors (snapshot or bump).
	EpochSnapshotError(region string, err error)
	EpochBumpError(region string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)          {}
func (NopHooks) BatchFetch(string, int)           {}
func (NopHooks) FlightJoined(string)              {}
func (NopHooks) ProviderSetRejected(string)       {}
func (NopHooks) EpochSnapshotError(string, error) {}
func (NopHooks) EpochBumpError(string, error)     {}
