// Package selection lists the instances and geofences offered by the data
// service and turns a user selection into features of the store.
package selection

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/internal/feature"
)

// Catalog kinds.
const (
	KindInstances = "instances"
	KindGeofences = "geofences"
)

// Fetcher loads the raw features of one endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]*geojson.Feature, error)
}

// Entry is one selectable feature.
type Entry struct {
	Feature feature.Feature
	Key     string
	Kind    string
}

// EntryKey builds the selection key of a feature.
func EntryKey(name, typ, kind string) string {
	return name + "_" + typ + "_" + kind
}

// Catalog caches the selectable features per kind.
type Catalog struct {
	fetcher   Fetcher
	endpoints map[string]string
	kinds     map[string]map[string]Entry
	mu        sync.RWMutex
}

// NewCatalog returns an empty catalog. endpoints maps each kind to the data
// service endpoint listing it.
func NewCatalog(f Fetcher, endpoints map[string]string) *Catalog {
	return &Catalog{
		fetcher:   f,
		endpoints: endpoints,
		kinds:     make(map[string]map[string]Entry),
	}
}

// Load fetches kind unless it is already cached. On failure the kind stays
// empty and a later Load retries.
func (c *Catalog) Load(ctx context.Context, kind string) error {
	endpoint, ok := c.endpoints[kind]
	if !ok {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	if c.Loaded(kind) {
		return nil
	}

	raw, err := c.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("Failed to load catalog")
		return err
	}

	entries := make(map[string]Entry, len(raw))
	for _, f := range feature.FromGeoJSONFeatures(raw, kind).Features {
		key := EntryKey(f.Name, f.Type, kind)
		entries[key] = Entry{Feature: f, Key: key, Kind: kind}
	}

	c.mu.Lock()
	c.kinds[kind] = entries
	c.mu.Unlock()

	log.Info().
		Str("kind", kind).
		Int("fetched", len(raw)).
		Int("entries", len(entries)).
		Msg("Catalog loaded")

	return nil
}

// Loaded reports whether kind has been fetched.
func (c *Catalog) Loaded(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.kinds[kind]
	return ok
}

// Kinds lists the configured kinds.
func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.endpoints))
	for k := range c.endpoints {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Entry looks up one key.
func (c *Catalog) Entry(kind, key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.kinds[kind][key]
	return e, ok
}

// Options lists the keys of kind ordered by type, then by key.
func (c *Catalog) Options(kind string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.kinds[kind]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if n := cmp.Compare(entries[a].Feature.Type, entries[b].Feature.Type); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})

	return keys
}

// Groups returns the keys of kind grouped by type, each group in Options order.
func (c *Catalog) Groups(kind string) map[string][]string {
	groups := make(map[string][]string)
	for _, key := range c.Options(kind) {
		e, _ := c.Entry(kind, key)
		groups[e.Feature.Type] = append(groups[e.Feature.Type], key)
	}
	return groups
}

// Label returns the display name of a key. Unknown keys fall back to the
// key without its last two segments.
func (c *Catalog) Label(kind, key string) string {
	if e, ok := c.Entry(kind, key); ok {
		return e.Feature.Name
	}

	parts := strings.Split(key, "_")
	if len(parts) < 3 {
		return key
	}
	return strings.Join(parts[:len(parts)-2], "_")
}
