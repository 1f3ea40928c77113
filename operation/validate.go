package operation

import "fmt"

// ConfigError reports a mutually exclusive attribute combination declared on
// one element. It is raised at wiring time; setup of the offending operation
// must abort rather than swallow it.
type ConfigError struct {
	Element Element
	AttrA   string
	AttrB   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("collcache: invalid cache configuration on %q: both %q and %q have been set; these attributes are mutually exclusive",
		e.Element, e.AttrA, e.AttrB)
}

// Validate checks the completed descriptor and fails fast on the first
// violated invariant. Defaults come from multiple sources, so an operation
// can end up inconsistent even when every individual declaration is valid.
func Validate(el Element, op Operation) error {
	if op.Key != "" && op.KeyGenerator != "" {
		return &ConfigError{Element: el, AttrA: "key", AttrB: "keyGenerator"}
	}
	if op.CacheManager != "" && op.CacheResolver != "" {
		return &ConfigError{Element: el, AttrA: "cacheManager", AttrB: "cacheResolver"}
	}
	return nil
}
