package resolve

import (
	"github.com/unkn0wn-root/collcache/operation"
)

// Table maps each element to its resolved operations. It is built once at
// wiring time and looked up by element identity thereafter, so the hot path
// never re-resolves declarations.
type Table struct {
	ops map[operation.Element][]operation.Operation
}

// BuildTable resolves every element up front. A configuration error on any
// element aborts the whole build; cache wiring must not come up half-valid.
func BuildTable(r *Resolver, elements []operation.Element) (*Table, error) {
	t := &Table{ops: make(map[operation.Element][]operation.Operation, len(elements))}
	for _, el := range elements {
		ops, err := r.Resolve(el)
		if err != nil {
			return nil, err
		}
		if len(ops) > 0 {
			t.ops[el] = ops
		}
	}
	return t, nil
}

// Lookup returns the resolved operations for el; ok=false means uncached.
func (t *Table) Lookup(el operation.Element) ([]operation.Operation, bool) {
	ops, ok := t.ops[el]
	return ops, ok
}

// Len reports how many elements resolved to at least one operation.
func (t *Table) Len() int { return len(t.ops) }
