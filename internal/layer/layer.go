package layer

import (
	"slices"

	"github.com/google/uuid"
	"github.com/woozymasta/fencedraw/internal/feature"
)

// ID addresses a layer inside an Arena. It never changes once assigned.
type ID string

// NewID returns a fresh random layer ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Pane groups layers for z-ordering on the map surface.
type Pane string

// Panes used by the editor.
const (
	PanePolygons Pane = "polygons"
	PaneCircles  Pane = "circles"
	PaneLines    Pane = "lines"
)

// Attribution tags that do not name a feature.
const (
	TagNewCircles = "new_circles"
	TagLast       = "last"
)

// Layer is one live object on the map surface.
type Layer struct {
	Shape Shape

	ID ID

	// Tag back-references the owning feature name, or one of the
	// TagNewCircles/TagLast sentinels for preview layers.
	Tag string

	// Name and Type mirror the identity of the owning feature. Both are empty
	// for layers drawn in this session and not yet rebuilt from the store.
	Name string
	Type string

	Pane  Pane
	Popup string

	// Index is the position of a cluster point inside its feature.
	Index int
}

// Kind returns the shape variant, empty when there is no shape.
func (l Layer) Kind() Kind {
	if l.Shape == nil {
		return ""
	}
	return l.Shape.Kind()
}

// Key returns the identity key of the owning feature.
func (l Layer) Key() string {
	return feature.IdentityKey(l.Name, l.Type)
}

// Tagged reports whether the layer mirrors a typed feature of the store.
// Only circles and polygons carry identity; lines are always derived.
func (l Layer) Tagged() bool {
	k := l.Kind()
	return (k == KindCircle || k == KindPolygon) && l.Type != ""
}

// Uncommitted reports whether the layer was drawn and has no identity yet:
// a circle without a type or a polygon without a name.
func (l Layer) Uncommitted() bool {
	switch l.Kind() {
	case KindCircle:
		return l.Type == ""
	case KindPolygon:
		return l.Name == ""
	default:
		return false
	}
}

// Arena is an insertion-ordered set of layers addressed by ID.
// It is not safe for concurrent use.
type Arena struct {
	items map[ID]Layer
	order []ID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{items: make(map[ID]Layer)}
}

// Add stores l at the end of the arena and returns its ID.
// A missing ID is generated.
func (a *Arena) Add(l Layer) ID {
	if l.ID == "" {
		l.ID = NewID()
	}
	if _, exists := a.items[l.ID]; !exists {
		a.order = append(a.order, l.ID)
	}
	a.items[l.ID] = l

	return l.ID
}

// Get returns the layer with the given ID.
func (a *Arena) Get(id ID) (Layer, bool) {
	l, ok := a.items[id]
	return l, ok
}

// Update applies fn to a copy of the layer and stores the result.
// The ID cannot be changed through fn.
func (a *Arena) Update(id ID, fn func(*Layer)) bool {
	l, ok := a.items[id]
	if !ok {
		return false
	}
	fn(&l)
	l.ID = id
	a.items[id] = l

	return true
}

// Remove deletes the layer with the given ID.
func (a *Arena) Remove(id ID) bool {
	if _, ok := a.items[id]; !ok {
		return false
	}
	delete(a.items, id)
	a.order = slices.DeleteFunc(a.order, func(x ID) bool { return x == id })

	return true
}

// RemoveFunc deletes every layer matching pred and returns how many went.
func (a *Arena) RemoveFunc(pred func(Layer) bool) int {
	removed := 0
	a.order = slices.DeleteFunc(a.order, func(id ID) bool {
		if pred(a.items[id]) {
			delete(a.items, id)
			removed++
			return true
		}
		return false
	})

	return removed
}

// Each calls fn for every layer in insertion order until fn returns false.
func (a *Arena) Each(fn func(i int, l Layer) bool) {
	for i, id := range a.order {
		if !fn(i, a.items[id]) {
			return
		}
	}
}

// Filter returns the layers matching pred in insertion order.
func (a *Arena) Filter(pred func(Layer) bool) []Layer {
	var out []Layer
	for _, id := range a.order {
		if l := a.items[id]; pred(l) {
			out = append(out, l)
		}
	}
	return out
}

// Snapshot returns every layer in insertion order.
func (a *Arena) Snapshot() []Layer {
	out := make([]Layer, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id])
	}
	return out
}

// Len returns the number of layers.
func (a *Arena) Len() int {
	return len(a.order)
}
