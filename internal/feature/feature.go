// Package feature holds the named geometries that make up the editing source of truth.
package feature

import (
	"maps"

	"github.com/paulmach/orb"
)

// Property keys with a fixed meaning.
const (
	PropName   = "name"
	PropType   = "type"
	PropRadius = "radius"
)

// Feature is a named geographic object. Its identity is name plus type.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]any

	Name string
	Type string

	// Source is the catalog kind the feature was loaded from, empty for
	// features created in the editor.
	Source string
}

// Key returns the identity key of the feature.
func (f Feature) Key() string {
	return IdentityKey(f.Name, f.Type)
}

// IdentityKey builds the identity key for a name and type pair.
func IdentityKey(name, typ string) string {
	return name + "-" + typ
}

// MultiPoint returns the point cluster of the feature, if it is one.
func (f Feature) MultiPoint() (orb.MultiPoint, bool) {
	mp, ok := f.Geometry.(orb.MultiPoint)
	return mp, ok
}

// Polygon returns the polygon of the feature, if it is one.
func (f Feature) Polygon() (orb.Polygon, bool) {
	p, ok := f.Geometry.(orb.Polygon)
	return p, ok
}

// Clone returns a deep copy of the feature.
func (f Feature) Clone() Feature {
	out := f
	if f.Geometry != nil {
		out.Geometry = orb.Clone(f.Geometry)
	}
	out.Properties = maps.Clone(f.Properties)

	return out
}

// Collection is an ordered list of features with unique identity keys.
type Collection struct {
	Features []Feature
}

// Len returns the number of features.
func (c Collection) Len() int {
	return len(c.Features)
}

// Index maps identity keys to positions in the collection.
func (c Collection) Index() map[string]int {
	idx := make(map[string]int, len(c.Features))
	for i, f := range c.Features {
		idx[f.Key()] = i
	}
	return idx
}

// Find returns the feature with the given identity key.
func (c Collection) Find(key string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Key() == key {
			return f, true
		}
	}
	return Feature{}, false
}

// Keys lists identity keys in collection order.
func (c Collection) Keys() []string {
	keys := make([]string, 0, len(c.Features))
	for _, f := range c.Features {
		keys = append(keys, f.Key())
	}
	return keys
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := Collection{Features: make([]Feature, 0, len(c.Features))}
	for _, f := range c.Features {
		out.Features = append(out.Features, f.Clone())
	}
	return out
}

// Dedupe drops every feature whose identity key was already seen,
// keeping the first occurrence.
func (c Collection) Dedupe() Collection {
	seen := make(map[string]struct{}, len(c.Features))
	out := Collection{Features: make([]Feature, 0, len(c.Features))}

	for _, f := range c.Features {
		key := f.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Features = append(out.Features, f)
	}

	return out
}
