// Package reconciler keeps the live map layers and the feature collection in sync.
//
// The store's collection is the source of truth. While no editing mode is
// active the layers are rebuilt from it whenever it changes. Draw, edit,
// cut, remove and drag events go the other way: they mutate the layers and
// the in-memory geometry, and a commit writes a fresh collection back.
package reconciler

import (
	"errors"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/geo"
	"github.com/woozymasta/fencedraw/internal/layer"
	"github.com/woozymasta/fencedraw/internal/metrics"
	"github.com/woozymasta/fencedraw/internal/store"
)

// Errors returned by layer events.
var (
	ErrNotFound     = errors.New("layer not found")
	ErrNotRemovable = errors.New("layer cannot be removed")
	ErrInvalidShape = errors.New("invalid shape")
)

// NewPolygonPrefix names polygons drawn in this session on commit.
const NewPolygonPrefix = "new_polygon_"

// Options tune the reconciler.
type Options struct {
	Label geo.PointLabel

	// CommitOnDrag writes the collection back after every drag end.
	// Without it a drag only changes the in-memory geometry until the next
	// commit, and a rebuild from the store discards it.
	CommitOnDrag bool
}

// Reconciler owns the live layers of one editing session.
type Reconciler struct {
	store       *store.Store
	layers      *layer.Arena
	unsubscribe func()

	// rendered holds the keys that got identity layers on the last rebuild.
	rendered map[string]bool
	working  feature.Collection
	opts     Options
	mu       sync.Mutex
}

// New attaches a reconciler to st and renders the current collection.
func New(st *store.Store, opts Options) *Reconciler {
	r := &Reconciler{
		store:  st,
		layers: layer.NewArena(),
		opts:   opts,
	}
	r.unsubscribe = st.Subscribe(r.onStoreChange)
	r.Rebuild()

	return r
}

// Close detaches the reconciler from the store.
func (r *Reconciler) Close() {
	r.unsubscribe()
}

func (r *Reconciler) onStoreChange(t store.Topic) {
	switch t {
	case store.TopicCollection:
		if !r.Rebuild() {
			r.refresh()
		}
	case store.TopicEditing:
		r.Rebuild()
	case store.TopicRadius:
		r.applyRadius()
	}
}

// refresh picks up a collection change that arrived while editing. The
// layers stay as they are until the next rebuild.
func (r *Reconciler) refresh() {
	c := r.store.Collection()

	r.mu.Lock()
	r.working = c
	r.mu.Unlock()
}

// Layers returns every live layer in insertion order.
func (r *Reconciler) Layers() []layer.Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layers.Snapshot()
}

// Layer returns one live layer.
func (r *Reconciler) Layer(id layer.ID) (layer.Layer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layers.Get(id)
}

// Working returns a copy of the in-memory geometry, including drags that
// were not committed yet.
func (r *Reconciler) Working() feature.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.working.Clone()
}

// Mode returns the current state of the editing state machine.
func (r *Reconciler) Mode() store.Mode {
	return r.store.Editing().Mode()
}

// Rebuild re-derives every identity layer from the store collection.
// It does nothing and returns false while an editing mode is active.
// Uncommitted layers and preview lines are left in place.
func (r *Reconciler) Rebuild() bool {
	if !r.store.Editing().Idle() {
		return false
	}

	c := r.store.Collection()
	radius := r.store.Radius()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.working = c
	r.rendered = make(map[string]bool, c.Len())
	removed := r.layers.RemoveFunc(func(l layer.Layer) bool {
		if l.Tagged() {
			return true
		}
		return l.Kind() == layer.KindLine && l.Tag != layer.TagNewCircles && l.Tag != layer.TagLast
	})

	for _, f := range c.Features {
		if !renderable(f) {
			continue
		}
		r.rendered[f.Key()] = true

		switch g := f.Geometry.(type) {
		case orb.Polygon:
			r.layers.Add(layer.Layer{
				Shape: layer.Polygon{Rings: g.Clone()},
				Tag:   f.Name,
				Name:  f.Name,
				Type:  f.Type,
				Pane:  layer.PanePolygons,
				Index: -1,
			})
		case orb.MultiPoint:
			r.addCluster(f, g, radius)
		}
	}

	metrics.RebuildsTotal.Inc()
	metrics.LiveLayers.Set(float64(r.layers.Len()))
	log.Debug().
		Int("features", c.Len()).
		Int("removed", removed).
		Int("layers", r.layers.Len()).
		Msg("Layers rebuilt from collection")

	return true
}

// addCluster renders one circle per valid coordinate and the closed loop of
// lines joining them in array order.
func (r *Reconciler) addCluster(f feature.Feature, mp orb.MultiPoint, radius float64) {
	idx := validIndices(mp)

	for k, i := range idx {
		p := mp[i]
		r.layers.Add(layer.Layer{
			Shape: layer.Circle{Center: p, Radius: radius},
			Tag:   f.Name,
			Name:  f.Name,
			Type:  f.Type,
			Pane:  layer.PaneCircles,
			Popup: r.opts.Label.Popup(p),
			Index: i,
		})

		next := mp[idx[(k+1)%len(idx)]]
		r.layers.Add(r.newLine(f.Name, f.Type, p, next, k))
	}
}

func (r *Reconciler) newLine(tag, typ string, from, to orb.Point, index int) layer.Layer {
	meters := geo.Distance(from, to)
	name := ""
	if tag != layer.TagNewCircles && tag != layer.TagLast {
		name = tag
	}

	return layer.Layer{
		Shape: layer.Line{From: from, To: to, Meters: meters, Color: geo.ColorFor(meters)},
		Tag:   tag,
		Name:  name,
		Type:  typ,
		Pane:  layer.PaneLines,
		Popup: geo.DistancePopup(meters),
		Index: index,
	}
}

// relink brings the line loop of the cluster at working index fi in line with
// its coordinates. Lines whose segment is unchanged keep their identity.
func (r *Reconciler) relink(fi int) {
	f := r.working.Features[fi]
	mp, _ := f.MultiPoint()
	idx := validIndices(mp)

	existing := r.layers.Filter(func(l layer.Layer) bool {
		return l.Kind() == layer.KindLine && l.Tag == f.Name && l.Type == f.Type
	})
	used := make([]bool, len(existing))

	for k, i := range idx {
		from, to := mp[i], mp[idx[(k+1)%len(idx)]]

		found := false
		for e, l := range existing {
			if used[e] || !l.Shape.(layer.Line).Segment(from, to) {
				continue
			}
			used[e] = true
			found = true
			r.layers.Update(l.ID, func(l *layer.Layer) { l.Index = k })
			break
		}
		if !found {
			r.layers.Add(r.newLine(f.Name, f.Type, from, to, k))
		}
	}

	for e, l := range existing {
		if !used[e] {
			r.layers.Remove(l.ID)
		}
	}
}

// relinkNew redraws the preview loop over the uncommitted circles in arena
// order. The closing line from the newest circle back to the first is the
// "last" line, so drawing can go on from here. A committed new_circles
// cluster in the working copy follows the circles.
func (r *Reconciler) relinkNew() {
	r.layers.RemoveFunc(func(l layer.Layer) bool {
		return l.Kind() == layer.KindLine && (l.Tag == layer.TagNewCircles || l.Tag == layer.TagLast)
	})

	pending := r.layers.Filter(func(l layer.Layer) bool {
		return l.Kind() == layer.KindCircle && l.Uncommitted()
	})
	pts := make(orb.MultiPoint, 0, len(pending))
	for _, l := range pending {
		pts = append(pts, l.Shape.(layer.Circle).Center)
	}

	for i, p := range pts {
		tag := layer.TagNewCircles
		if i == len(pts)-1 {
			tag = layer.TagLast
		}
		r.layers.Add(r.newLine(tag, "", p, pts[(i+1)%len(pts)], i))
	}

	key := feature.IdentityKey(layer.TagNewCircles, "")
	for i, f := range r.working.Features {
		if _, ok := f.MultiPoint(); ok && f.Key() == key {
			r.working.Features[i].Geometry = pts.Clone()
		}
	}
}

// findCluster returns the working index of the point cluster owning l.
func (r *Reconciler) findCluster(l layer.Layer) int {
	key := l.Key()
	for i, f := range r.working.Features {
		if _, ok := f.MultiPoint(); ok && f.Key() == key {
			return i
		}
	}
	return -1
}

// matchPoint locates the coordinate a circle stands for. The remembered
// index wins when it still holds the same coordinate; otherwise the first
// exact match is used.
func matchPoint(mp orb.MultiPoint, index int, p orb.Point) int {
	if index >= 0 && index < len(mp) && mp[index] == p {
		return index
	}
	for i, q := range mp {
		if q == p {
			return i
		}
	}
	return -1
}

func validIndices(mp orb.MultiPoint) []int {
	idx := make([]int, 0, len(mp))
	for i, p := range mp {
		if geo.ValidPoint(p) {
			idx = append(idx, i)
		}
	}
	return idx
}

// carried reports whether commit must keep f although no layer stands for
// it: it was never rendered, or rebuild cannot draw it, such as an emptied
// cluster. Features named by a previous commit after uncommitted layers are
// not carried; commit derives them again from those layers.
func (r *Reconciler) carried(f feature.Feature) bool {
	if f.Type == "" && f.Source == "" && derivedName(f.Name) {
		return false
	}
	return !renderable(f) || !r.rendered[f.Key()]
}

func derivedName(name string) bool {
	return name == layer.TagNewCircles || strings.HasPrefix(name, NewPolygonPrefix)
}

// renderable reports whether rebuild gives f at least one identity layer.
func renderable(f feature.Feature) bool {
	if f.Type == "" {
		return false
	}
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return true
	case orb.MultiPoint:
		return len(validIndices(g)) > 0
	default:
		return false
	}
}

func shapeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
