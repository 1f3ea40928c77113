// Package yamlsource serves declarative cache settings parsed from a YAML
// document. It implements both resolve.Source and operation.ConfigSource, so
// a whole deployment's cache wiring can live in one file.
//
// Document shape:
//
//	types:
//	  BaseRepository:
//	    methods:
//	      FindByID:
//	        - cacheNames: [items]
//	  ItemRepository:
//	    extends: [BaseRepository]
//	    config:
//	      cacheNames: [items]
//	      keyGenerator: itemKeys
//	    methods:
//	      FindByID:
//	        - sync: true
//
// The merged view of an element walks the extends chain depth-first with the
// type's own declarations first; the local view reads only the exact type.
// Type-level config is taken from the nearest type along the chain that
// declares one, mirroring how composed declarations shadow inherited ones.
package yamlsource

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/collcache/operation"
)

type attrDoc struct {
	CacheNames    []string `yaml:"cacheNames"`
	Key           string   `yaml:"key"`
	KeyGenerator  string   `yaml:"keyGenerator"`
	CacheManager  string   `yaml:"cacheManager"`
	CacheResolver string   `yaml:"cacheResolver"`
	Condition     string   `yaml:"condition"`
	Unless        string   `yaml:"unless"`
	Sync          bool     `yaml:"sync"`
}

type configDoc struct {
	CacheNames    []string `yaml:"cacheNames"`
	KeyGenerator  string   `yaml:"keyGenerator"`
	CacheManager  string   `yaml:"cacheManager"`
	CacheResolver string   `yaml:"cacheResolver"`
}

type typeDoc struct {
	Extends []string             `yaml:"extends"`
	Config  *configDoc           `yaml:"config"`
	Methods map[string][]attrDoc `yaml:"methods"`
}

type document struct {
	Types map[string]typeDoc `yaml:"types"`
}

// YAML is an immutable declaration source backed by one parsed document.
type YAML struct {
	types map[string]typeDoc
}

// Parse decodes a YAML document and verifies that every extends reference
// names a declared type.
func Parse(b []byte) (*YAML, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("yamlsource: parse: %w", err)
	}
	for name, td := range doc.Types {
		for _, parent := range td.Extends {
			if _, ok := doc.Types[parent]; !ok {
				return nil, fmt.Errorf("yamlsource: type %q extends unknown type %q", name, parent)
			}
		}
	}
	if doc.Types == nil {
		doc.Types = map[string]typeDoc{}
	}
	return &YAML{types: doc.Types}, nil
}

// Load reads and parses the document at path.
func Load(path string) (*YAML, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("yamlsource: read %s: %w", path, err)
	}
	return Parse(b)
}

// Local returns only the declarations made directly on el's exact type.
func (y *YAML) Local(el operation.Element) []operation.Attributes {
	td, ok := y.types[el.Type]
	if !ok {
		return nil
	}
	return toAttrs(td.Methods[el.Method])
}

// Merged composes declarations across el's whole extends chain, the type's
// own declarations first. Exact duplicate declarations collapse to one.
func (y *YAML) Merged(el operation.Element) []operation.Attributes {
	var out []operation.Attributes
	seen := make(map[string]bool)
	y.walk(el.Type, seen, func(td typeDoc) bool {
		for _, a := range toAttrs(td.Methods[el.Method]) {
			if !containsAttr(out, a) {
				out = append(out, a)
			}
		}
		return false
	})
	return out
}

// TypeConfig returns the type-level defaults from the nearest type along the
// chain declaring a config block.
func (y *YAML) TypeConfig(typeName string) (operation.Defaults, bool) {
	var d operation.Defaults
	found := false
	y.walk(typeName, make(map[string]bool), func(td typeDoc) bool {
		if td.Config == nil {
			return false
		}
		d = operation.Defaults{
			CacheNames:    append([]string(nil), td.Config.CacheNames...),
			KeyGenerator:  td.Config.KeyGenerator,
			CacheManager:  td.Config.CacheManager,
			CacheResolver: td.Config.CacheResolver,
		}
		found = true
		return true
	})
	return d, found
}

// walk visits typeName and its ancestors depth-first, own type first.
// visit returning true stops the walk.
func (y *YAML) walk(typeName string, seen map[string]bool, visit func(typeDoc) bool) bool {
	if seen[typeName] {
		return false
	}
	seen[typeName] = true
	td, ok := y.types[typeName]
	if !ok {
		return false
	}
	if visit(td) {
		return true
	}
	for _, parent := range td.Extends {
		if y.walk(parent, seen, visit) {
			return true
		}
	}
	return false
}

func toAttrs(docs []attrDoc) []operation.Attributes {
	if len(docs) == 0 {
		return nil
	}
	out := make([]operation.Attributes, 0, len(docs))
	for _, d := range docs {
		out = append(out, operation.Attributes{
			CacheNames:    append([]string(nil), d.CacheNames...),
			Key:           d.Key,
			KeyGenerator:  d.KeyGenerator,
			CacheManager:  d.CacheManager,
			CacheResolver: d.CacheResolver,
			Condition:     d.Condition,
			Unless:        d.Unless,
			Sync:          d.Sync,
		})
	}
	return out
}

func containsAttr(list []operation.Attributes, a operation.Attributes) bool {
	for _, x := range list {
		if x.Equal(a) {
			return true
		}
	}
	return false
}
