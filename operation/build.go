package operation

// Build maps attrs 1:1 onto a descriptor for el, applies the type-level
// defaults in order, and validates the result.
//
// Default application:
//  1. CacheNames: the operation's own list wins outright; the default list is
//     used only when the operation declared none. Lists are never merged.
//  2. KeyGenerator: inherited only when the operation declared neither a key
//     expression nor a key generator, and the default generator is non-empty.
//  3. Cache location: when the operation set either CacheManager or
//     CacheResolver, defaults are skipped entirely. Otherwise a default
//     resolver wins over a default manager.
func Build(el Element, attrs Attributes, defaults Defaults) (Operation, error) {
	op := Operation{
		Name:          el.String(),
		CacheNames:    attrs.CacheNames,
		Key:           attrs.Key,
		KeyGenerator:  attrs.KeyGenerator,
		CacheManager:  attrs.CacheManager,
		CacheResolver: attrs.CacheResolver,
		Condition:     attrs.Condition,
		Unless:        attrs.Unless,
		Sync:          attrs.Sync,
	}

	if len(op.CacheNames) == 0 && len(defaults.CacheNames) > 0 {
		op.CacheNames = append([]string(nil), defaults.CacheNames...)
	}
	if op.Key == "" && op.KeyGenerator == "" && defaults.KeyGenerator != "" {
		op.KeyGenerator = defaults.KeyGenerator
	}
	switch {
	case op.CacheManager != "" || op.CacheResolver != "":
		// the operation picked its own location strategy; inherit nothing
	case defaults.CacheResolver != "":
		op.CacheResolver = defaults.CacheResolver
	case defaults.CacheManager != "":
		op.CacheManager = defaults.CacheManager
	}

	if err := Validate(el, op); err != nil {
		return Operation{}, err
	}
	return op, nil
}
