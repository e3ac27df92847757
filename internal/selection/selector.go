package selection

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/store"
)

// Selector applies catalog selections to the store.
type Selector struct {
	catalog *Catalog
	store   *store.Store
}

// NewSelector binds a catalog to a store.
func NewSelector(c *Catalog, st *store.Store) *Selector {
	return &Selector{catalog: c, store: st}
}

// Selected returns the selected keys of kind.
func (s *Selector) Selected(kind string) []string {
	return slices.DeleteFunc(s.store.Selected(), func(key string) bool {
		_, ok := s.catalog.Entry(kind, key)
		return !ok
	})
}

// Set makes keys the selection of kind. Keys that are not loaded for kind
// are ignored; selections of other kinds are kept. The features of kind in
// the store are replaced by the selected ones.
func (s *Selector) Set(kind string, keys []string) []string {
	next := slices.DeleteFunc(s.store.Selected(), func(key string) bool {
		_, ok := s.catalog.Entry(kind, key)
		return ok
	})

	seen := make(map[string]bool, len(keys))
	features := make([]feature.Feature, 0, len(keys))
	for _, key := range keys {
		e, ok := s.catalog.Entry(kind, key)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		next = append(next, key)
		features = append(features, e.Feature)
	}

	s.store.SetSelected(next)
	s.store.ReplaceSource(kind, features)

	log.Debug().
		Str("kind", kind).
		Int("selected", len(features)).
		Int("total", len(next)).
		Msg("Selection applied")

	return next
}

// ToggleGroup flips every entry of one type. If any member of the group is
// selected the whole group is deselected, otherwise all of it is selected.
func (s *Selector) ToggleGroup(kind, group string) []string {
	members := s.catalog.Groups(kind)[group]
	current := s.Selected(kind)

	var next []string
	if slices.ContainsFunc(members, func(key string) bool { return slices.Contains(current, key) }) {
		next = slices.DeleteFunc(current, func(key string) bool { return slices.Contains(members, key) })
	} else {
		next = append(current, members...)
	}

	return s.Set(kind, next)
}
