package reconciler

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/geo"
	"github.com/woozymasta/fencedraw/internal/layer"
	"github.com/woozymasta/fencedraw/internal/metrics"
	"github.com/woozymasta/fencedraw/internal/store"
)

// Commit scans the live layers and replaces the store collection with what
// they describe. Uncommitted circles are gathered into one "new_circles"
// cluster, uncommitted polygons are named after their layer position, and
// every identity layer keeps its feature exactly once. Typed features that
// have no layer of their own, such as emptied clusters, are carried through.
func (r *Reconciler) Commit() feature.Collection {
	c := r.collect()
	r.store.SetCollection(c)

	metrics.CommitsTotal.Inc()
	log.Debug().Int("features", c.Len()).Msg("Layers committed to collection")

	return c
}

func (r *Reconciler) collect() feature.Collection {
	radius := r.store.Radius()

	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := make(map[string]int, len(r.working.Features))
	for i, f := range r.working.Features {
		if !r.carried(f) {
			remaining[f.Key()] = i
		}
	}

	out := feature.Collection{}
	var newCircles orb.MultiPoint

	r.layers.Each(func(i int, l layer.Layer) bool {
		switch shape := l.Shape.(type) {
		case layer.Circle:
			if l.Uncommitted() {
				newCircles = append(newCircles, shape.Center)
				return true
			}
			if fi, ok := remaining[l.Key()]; ok {
				out.Features = append(out.Features, r.working.Features[fi].Clone())
				delete(remaining, l.Key())
			}
		case layer.Polygon:
			if l.Uncommitted() {
				out.Features = append(out.Features, feature.Feature{
					Name:       fmt.Sprintf("%s%d", NewPolygonPrefix, i+1),
					Geometry:   shape.Rings.Clone(),
					Properties: map[string]any{},
				})
				return true
			}
			if fi, ok := remaining[l.Key()]; ok {
				f := r.working.Features[fi].Clone()
				f.Geometry = shape.Rings.Clone()
				out.Features = append(out.Features, f)
				delete(remaining, l.Key())
			}
		}
		return true
	})

	for _, f := range r.working.Features {
		if r.carried(f) {
			out.Features = append(out.Features, f.Clone())
		}
	}

	if len(newCircles) > 0 {
		out.Features = append(out.Features, feature.Feature{
			Name:       layer.TagNewCircles,
			Geometry:   newCircles,
			Properties: map[string]any{feature.PropRadius: radius},
		})
	}

	return out.Dedupe()
}

// Create adds a freshly drawn shape. A polygon is committed right away; a
// circle joins the uncommitted cluster and gets preview lines: one back to
// the previous new circle and, from the third circle on, a single closing
// line back to the first.
func (r *Reconciler) Create(shape layer.Shape) (layer.ID, error) {
	switch s := shape.(type) {
	case layer.Polygon:
		if !validRings(s.Rings) {
			return "", ErrInvalidShape
		}
		r.mu.Lock()
		id := r.layers.Add(layer.Layer{
			Shape: layer.Polygon{Rings: s.Rings.Clone()},
			Pane:  layer.PanePolygons,
			Index: -1,
		})
		r.mu.Unlock()

		r.Commit()
		return id, nil

	case layer.Circle:
		if !geo.ValidPoint(s.Center) {
			return "", ErrInvalidShape
		}
		if radius := r.store.Radius(); radius > 0 {
			s.Radius = radius
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		id := r.layers.Add(layer.Layer{
			Shape: s,
			Tag:   layer.TagNewCircles,
			Pane:  layer.PaneCircles,
			Popup: r.opts.Label.Popup(s.Center),
			Index: -1,
		})

		pending := r.layers.Filter(func(l layer.Layer) bool {
			return l.Kind() == layer.KindCircle && l.Uncommitted()
		})
		if n := len(pending); n > 1 {
			prev := pending[n-2].Shape.(layer.Circle)
			r.layers.RemoveFunc(func(l layer.Layer) bool {
				return l.Kind() == layer.KindLine && l.Tag == layer.TagLast
			})
			r.layers.Add(r.newLine(layer.TagNewCircles, "", prev.Center, s.Center, n-2))

			if n > 2 {
				first := pending[0].Shape.(layer.Circle)
				r.layers.Add(r.newLine(layer.TagLast, "", s.Center, first.Center, n-1))
			}
		}
		metrics.LiveLayers.Set(float64(r.layers.Len()))

		return id, nil

	default:
		return "", ErrInvalidShape
	}
}

// Drag handles the end of a drag. Circles take an orb.Point, polygons an
// orb.Polygon. When a dragged circle belongs to a cluster the matching
// coordinate is replaced and the loop is relinked.
func (r *Reconciler) Drag(id layer.ID, to orb.Geometry) error {
	r.mu.Lock()
	err := r.move(id, to)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if r.opts.CommitOnDrag {
		r.Commit()
	}
	return nil
}

// Edit replaces the geometry of a layer and commits.
func (r *Reconciler) Edit(id layer.ID, to orb.Geometry) error {
	r.mu.Lock()
	err := r.move(id, to)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.Commit()
	return nil
}

func (r *Reconciler) move(id layer.ID, to orb.Geometry) error {
	l, ok := r.layers.Get(id)
	if !ok {
		return ErrNotFound
	}

	switch shape := l.Shape.(type) {
	case layer.Circle:
		p, ok := to.(orb.Point)
		if !ok || !geo.ValidPoint(p) {
			return ErrInvalidShape
		}

		index := l.Index
		fi := -1
		if l.Tagged() {
			fi = r.findCluster(l)
		}
		if fi >= 0 {
			mp, _ := r.working.Features[fi].MultiPoint()
			if j := matchPoint(mp, l.Index, shape.Center); j >= 0 {
				mp[j] = p
				index = j
			}
		}

		r.layers.Update(id, func(l *layer.Layer) {
			l.Shape = layer.Circle{Center: p, Radius: shape.Radius}
			l.Popup = r.opts.Label.Popup(p)
			l.Index = index
		})
		switch {
		case fi >= 0:
			r.relink(fi)
		case l.Uncommitted():
			r.relinkNew()
		}

	case layer.Polygon:
		rings, ok := to.(orb.Polygon)
		if !ok || !validRings(rings) {
			return ErrInvalidShape
		}
		r.layers.Update(id, func(l *layer.Layer) {
			l.Shape = layer.Polygon{Rings: rings.Clone()}
		})

	default:
		return ErrInvalidShape
	}

	return nil
}

// Cut replaces the rings of a polygon after a cut and commits. A cut that
// leaves nothing removes the polygon.
func (r *Reconciler) Cut(id layer.ID, rest orb.Polygon) error {
	r.mu.Lock()
	l, ok := r.layers.Get(id)
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if l.Kind() != layer.KindPolygon {
		r.mu.Unlock()
		return ErrInvalidShape
	}

	if len(rest) == 0 {
		r.layers.Remove(id)
	} else {
		if !validRings(rest) {
			r.mu.Unlock()
			return ErrInvalidShape
		}
		r.layers.Update(id, func(l *layer.Layer) {
			l.Shape = layer.Polygon{Rings: rest.Clone()}
		})
	}
	r.mu.Unlock()

	r.Commit()
	return nil
}

// Remove deletes a circle or polygon and commits. Removing a cluster circle
// also drops its coordinate and relinks the loop.
func (r *Reconciler) Remove(id layer.ID) error {
	r.mu.Lock()
	l, ok := r.layers.Get(id)
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	switch l.Kind() {
	case layer.KindCircle:
		fi := -1
		if l.Tagged() {
			fi = r.findCluster(l)
		}
		r.layers.Remove(id)
		switch {
		case fi >= 0:
			r.dropPoint(fi, l)
			r.relink(fi)
		case l.Uncommitted():
			r.relinkNew()
		}
	case layer.KindPolygon:
		r.layers.Remove(id)
	default:
		r.mu.Unlock()
		return ErrNotRemovable
	}
	r.mu.Unlock()

	if r.store.ActiveLayer() == id {
		r.store.SetActiveLayer("")
	}
	r.Commit()

	return nil
}

// dropPoint removes the coordinate of circle l from cluster fi and shifts
// the remembered index of the circles that followed it.
func (r *Reconciler) dropPoint(fi int, l layer.Layer) {
	f := &r.working.Features[fi]
	mp, _ := f.MultiPoint()

	j := matchPoint(mp, l.Index, l.Shape.(layer.Circle).Center)
	if j < 0 {
		return
	}
	f.Geometry = append(mp[:j:j], mp[j+1:]...)

	key := l.Key()
	for _, other := range r.layers.Filter(func(o layer.Layer) bool {
		return o.Kind() == layer.KindCircle && o.Key() == key && o.Index > j
	}) {
		r.layers.Update(other.ID, func(o *layer.Layer) { o.Index-- })
	}
}

// SetMode drives the editing state machine. Leaving draw mode clears the
// active layer, drawing a shape makes its kind visible, and finishing a
// circle drawing commits.
func (r *Reconciler) SetMode(mode store.Mode, enabled bool, shape string) {
	if mode == store.ModeDraw {
		if !enabled {
			r.store.SetActiveLayer("")
		}
		switch shapeName(shape) {
		case "polygon":
			r.store.UpdateSettings(func(s *store.Settings) { s.ShowPolygons = true })
		case "circle":
			r.store.UpdateSettings(func(s *store.Settings) { s.ShowCircles = true })
			if !enabled {
				r.Commit()
			}
		}
	}

	r.store.UpdateEditing(func(e *store.Editing) { e.Set(mode, enabled) })

	log.Debug().
		Str("mode", string(mode)).
		Bool("enabled", enabled).
		Str("state", string(r.Mode())).
		Msg("Editing mode toggled")
}

// SetRadius changes the global circle radius. Outside draw mode it is
// applied to every circle right away.
func (r *Reconciler) SetRadius(radius float64) {
	r.store.SetRadius(radius)
}

func (r *Reconciler) applyRadius() {
	radius := r.store.Radius()
	if radius <= 0 || r.store.Editing().Draw {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.layers.Filter(func(l layer.Layer) bool { return l.Kind() == layer.KindCircle }) {
		r.layers.Update(l.ID, func(l *layer.Layer) {
			c := l.Shape.(layer.Circle)
			c.Radius = radius
			l.Shape = c
		})
	}
}

// Activate marks a layer as clicked.
func (r *Reconciler) Activate(id layer.ID) error {
	if _, ok := r.Layer(id); !ok {
		return ErrNotFound
	}
	r.store.SetActiveLayer(id)
	return nil
}

// ClickMap records where the map was clicked.
func (r *Reconciler) ClickMap(p orb.Point) {
	r.store.SetPopupLocation(p)
}

// ClosePopup clears the active layer.
func (r *Reconciler) ClosePopup() {
	r.store.SetActiveLayer("")
}

func validRings(rings orb.Polygon) bool {
	if len(rings) == 0 {
		return false
	}
	for _, ring := range rings {
		if len(ring) < 3 {
			return false
		}
		for _, p := range ring {
			if !geo.ValidPoint(p) {
				return false
			}
		}
	}
	return true
}
