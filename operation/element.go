package operation

// Element identifies one overridable method on a declaring type.
// It is the identity under which descriptors are resolved and looked up.
type Element struct {
	Type   string
	Method string
}

func (e Element) String() string {
	if e.Method == "" {
		return e.Type
	}
	return e.Type + "." + e.Method
}
