// Package operation defines the descriptor of a single cache-enabled
// operation and the rules that turn raw declarative attributes plus
// type-level defaults into a validated, immutable Operation.
package operation

// Attributes is the raw attribute bag of one declarative cache setting,
// exactly as discovered on an element, before any default is applied.
// The zero value means "nothing declared".
type Attributes struct {
	CacheNames    []string
	Key           string // expression text computing the cache key per call
	KeyGenerator  string // name of a key-generation strategy
	CacheManager  string // name of a cache-manager strategy
	CacheResolver string // name of a cache-resolver strategy
	Condition     string
	Unless        string
	Sync          bool
}

// Operation is the resolved descriptor driving the runtime engine.
// Built once per element via Build and never mutated afterwards.
//
// Invariants (enforced by Validate): Key and KeyGenerator are never both
// set, and neither are CacheManager and CacheResolver.
type Operation struct {
	Name          string // diagnostic label, usually the element identifier
	CacheNames    []string
	Key           string
	KeyGenerator  string
	CacheManager  string
	CacheResolver string
	Condition     string
	Unless        string
	Sync          bool
}

// Equal reports whether two attribute bags declare the same settings.
// Used to collapse duplicate declarations found along a type hierarchy.
func (a Attributes) Equal(b Attributes) bool {
	if a.Key != b.Key || a.KeyGenerator != b.KeyGenerator ||
		a.CacheManager != b.CacheManager || a.CacheResolver != b.CacheResolver ||
		a.Condition != b.Condition || a.Unless != b.Unless || a.Sync != b.Sync {
		return false
	}
	if len(a.CacheNames) != len(b.CacheNames) {
		return false
	}
	for i := range a.CacheNames {
		if a.CacheNames[i] != b.CacheNames[i] {
			return false
		}
	}
	return true
}
