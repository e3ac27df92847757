package reconciler

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/geo"
	"github.com/woozymasta/fencedraw/internal/layer"
	"github.com/woozymasta/fencedraw/internal/store"
)

var testLabel = geo.PointLabel{Precisions: []uint{9, 12}, H3Resolution: -1}

func newTestReconciler(t *testing.T, c feature.Collection, commitOnDrag bool) (*Reconciler, *store.Store) {
	t.Helper()

	st := store.New(70, store.Settings{})
	st.SetCollection(c)
	r := New(st, Options{Label: testLabel, CommitOnDrag: commitOnDrag})
	t.Cleanup(r.Close)

	return r, st
}

func cluster(name string, pts ...orb.Point) feature.Feature {
	return feature.Feature{Name: name, Type: "circle", Geometry: orb.MultiPoint(pts)}
}

func square(name string) feature.Feature {
	return feature.Feature{
		Name:     name,
		Type:     feature.TypePokemonIV,
		Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}},
	}
}

func collection(fs ...feature.Feature) feature.Collection {
	return feature.Collection{Features: fs}
}

func circlesOf(r *Reconciler, name string) []layer.Layer {
	return slices.DeleteFunc(r.Layers(), func(l layer.Layer) bool {
		return l.Kind() != layer.KindCircle || l.Tag != name
	})
}

func linesOf(r *Reconciler, tag string) []layer.Layer {
	return slices.DeleteFunc(r.Layers(), func(l layer.Layer) bool {
		return l.Kind() != layer.KindLine || l.Tag != tag
	})
}

// assertLoop checks that the lines of a cluster form exactly one closed loop
// over pts in array order.
func assertLoop(t *testing.T, lines []layer.Layer, pts []orb.Point) {
	t.Helper()

	if len(lines) != len(pts) {
		t.Fatalf("got %d lines, want %d", len(lines), len(pts))
	}
	for i := range pts {
		from, to := pts[i], pts[(i+1)%len(pts)]
		found := 0
		for _, l := range lines {
			if l.Shape.(layer.Line).Segment(from, to) {
				found++
			}
		}
		if found != 1 {
			t.Fatalf("segment %v -> %v found %d times", from, to, found)
		}
	}
}

func TestRebuildScenario(t *testing.T) {
	t.Parallel()

	r, _ := newTestReconciler(t, collection(cluster("A", orb.Point{0, 0}, orb.Point{0, 1}, orb.Point{1, 1})), false)

	circles := circlesOf(r, "A")
	if len(circles) != 3 {
		t.Fatalf("got %d circles, want 3", len(circles))
	}
	for i, c := range circles {
		if c.Index != i || c.Pane != layer.PaneCircles || !c.Tagged() {
			t.Fatalf("circle %d: %+v", i, c)
		}
		if c.Shape.(layer.Circle).Radius != 70 {
			t.Fatalf("circle %d radius %v", i, c.Shape.(layer.Circle).Radius)
		}
		if !strings.Contains(c.Popup, "Hash: ") {
			t.Fatalf("circle popup lacks geohash: %q", c.Popup)
		}
	}

	lines := linesOf(r, "A")
	assertLoop(t, lines, []orb.Point{{0, 0}, {0, 1}, {1, 1}})
	for _, l := range lines {
		line := l.Shape.(layer.Line)
		if want := geo.Distance(line.From, line.To); math.Abs(line.Meters-want) > 1e-6 {
			t.Fatalf("line meters %v want %v", line.Meters, want)
		}
		if line.Color != geo.ColorFor(line.Meters) {
			t.Fatalf("line color %s for %vm", line.Color, line.Meters)
		}
		if l.Popup != geo.DistancePopup(line.Meters) {
			t.Fatalf("line popup %q", l.Popup)
		}
	}
}

func TestRebuildClosedLoopForAnySize(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 6; n++ {
		n := n
		t.Run(fmt.Sprintf("%d points", n), func(t *testing.T) {
			t.Parallel()

			pts := make([]orb.Point, n)
			for i := range pts {
				pts[i] = orb.Point{float64(i) * 0.01, float64(i%2) * 0.01}
			}
			r, _ := newTestReconciler(t, collection(cluster("A", pts...)), false)

			if got := len(circlesOf(r, "A")); got != n {
				t.Fatalf("got %d circles, want %d", got, n)
			}
			assertLoop(t, linesOf(r, "A"), pts)
		})
	}
}

func TestRebuildSkipsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	r, _ := newTestReconciler(t, collection(
		cluster("A", orb.Point{0, 0}, orb.Point{math.NaN(), 1}, orb.Point{1, 1}),
	), false)

	if got := len(circlesOf(r, "A")); got != 2 {
		t.Fatalf("got %d circles, want 2", got)
	}
	assertLoop(t, linesOf(r, "A"), []orb.Point{{0, 0}, {1, 1}})
}

func TestRebuildSkipsUntypedFeatures(t *testing.T) {
	t.Parallel()

	untyped := cluster("B", orb.Point{0, 0})
	untyped.Type = ""
	r, _ := newTestReconciler(t, collection(untyped, square("P")), false)

	layers := r.Layers()
	if len(layers) != 1 || layers[0].Kind() != layer.KindPolygon || layers[0].Pane != layer.PanePolygons {
		t.Fatalf("unexpected layers %+v", layers)
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(
		square("P"),
		cluster("A", orb.Point{0, 0}, orb.Point{0, 1}),
		cluster("E"), // empty cluster, no layers
		feature.Feature{Name: "L", Type: feature.TypeLeveling, Geometry: orb.Point{3, 3}},
	), false)

	before := st.Collection().Keys()
	r.Commit()
	after := st.Collection().Keys()

	slices.Sort(before)
	slices.Sort(after)
	if !slices.Equal(before, after) {
		t.Fatalf("commit changed identity keys: %v -> %v", before, after)
	}
}

func TestCommitKeepsEachFeatureOnce(t *testing.T) {
	t.Parallel()

	r, _ := newTestReconciler(t, collection(cluster("A", orb.Point{0, 0}, orb.Point{0, 1}, orb.Point{1, 1})), false)

	c := r.Commit()
	if c.Len() != 1 {
		t.Fatalf("got %d features, want 1: %v", c.Len(), c.Keys())
	}
	if mp, _ := c.Features[0].MultiPoint(); len(mp) != 3 {
		t.Fatalf("cluster lost points: %v", mp)
	}
}

func TestDrawCirclesPreviewAndCommit(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, feature.Collection{}, false)
	r.SetMode(store.ModeDraw, true, "Circle")

	pts := []orb.Point{{0, 0}, {0, 0.001}, {0.001, 0.001}, {0.001, 0}}
	for i, p := range pts {
		if _, err := r.Create(layer.Circle{Center: p, Radius: 10}); err != nil {
			t.Fatalf("create circle %d: %v", i, err)
		}

		if got, want := len(linesOf(r, layer.TagNewCircles)), i; got != want {
			t.Fatalf("after %d circles: %d preview lines, want %d", i+1, got, want)
		}
		last := linesOf(r, layer.TagLast)
		switch {
		case i < 2 && len(last) != 0:
			t.Fatalf("after %d circles: closing line drawn too early", i+1)
		case i >= 2 && len(last) != 1:
			t.Fatalf("after %d circles: %d closing lines, want 1", i+1, len(last))
		case i >= 2 && !last[0].Shape.(layer.Line).Segment(p, pts[0]):
			t.Fatalf("closing line does not join newest to first: %+v", last[0].Shape)
		}
	}

	for _, c := range circlesOf(r, layer.TagNewCircles) {
		if !c.Uncommitted() || c.Shape.(layer.Circle).Radius != 70 {
			t.Fatalf("new circle %+v", c)
		}
	}
	if st.Collection().Len() != 0 {
		t.Fatalf("circles committed before draw mode ended")
	}

	r.SetMode(store.ModeDraw, false, "Circle")

	f, ok := st.Collection().Find(feature.IdentityKey(layer.TagNewCircles, ""))
	if !ok {
		t.Fatalf("new_circles feature missing: %v", st.Collection().Keys())
	}
	mp, _ := f.MultiPoint()
	if !slices.Equal([]orb.Point(mp), pts) {
		t.Fatalf("new_circles=%v want %v", mp, pts)
	}
	if f.Properties[feature.PropRadius] != 70.0 {
		t.Fatalf("radius property %v", f.Properties[feature.PropRadius])
	}
	if !st.Settings().ShowCircles {
		t.Fatalf("drawing circles did not show circles")
	}

	// uncommitted layers survive the rebuild that follows the mode change
	if got := len(circlesOf(r, layer.TagNewCircles)); got != len(pts) {
		t.Fatalf("rebuild dropped uncommitted circles: %d left", got)
	}
}

func TestNewCirclesLoopAfterRemoveAndDrag(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, feature.Collection{}, true)
	newKey := feature.IdentityKey(layer.TagNewCircles, "")
	previewLines := func() []layer.Layer {
		return append(linesOf(r, layer.TagNewCircles), linesOf(r, layer.TagLast)...)
	}
	committed := func() []orb.Point {
		t.Helper()
		f, ok := st.Collection().Find(newKey)
		if !ok {
			t.Fatalf("new_circles feature missing: %v", st.Collection().Keys())
		}
		mp, _ := f.MultiPoint()
		return mp
	}

	r.SetMode(store.ModeDraw, true, "Circle")
	var ids []layer.ID
	for _, p := range []orb.Point{{0, 0}, {0, 0.001}, {0.001, 0.001}} {
		id, err := r.Create(layer.Circle{Center: p})
		if err != nil {
			t.Fatalf("create circle: %v", err)
		}
		ids = append(ids, id)
	}
	r.SetMode(store.ModeDraw, false, "Circle")

	r.SetMode(store.ModeRemoval, true, "")
	if err := r.Remove(ids[2]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	r.SetMode(store.ModeRemoval, false, "")

	want := []orb.Point{{0, 0}, {0, 0.001}}
	if got := committed(); !slices.Equal(got, want) {
		t.Fatalf("new_circles=%v want %v", got, want)
	}
	assertLoop(t, previewLines(), want)

	r.SetMode(store.ModeDrag, true, "")
	if err := r.Drag(ids[1], orb.Point{0.5, 0.5}); err != nil {
		t.Fatalf("drag: %v", err)
	}
	r.SetMode(store.ModeDrag, false, "")

	want = []orb.Point{{0, 0}, {0.5, 0.5}}
	if got := committed(); !slices.Equal(got, want) {
		t.Fatalf("new_circles after drag=%v want %v", got, want)
	}
	assertLoop(t, previewLines(), want)

	// drawing on extends the same loop
	r.SetMode(store.ModeDraw, true, "Circle")
	if _, err := r.Create(layer.Circle{Center: orb.Point{0.5, 0}}); err != nil {
		t.Fatalf("create circle: %v", err)
	}
	assertLoop(t, previewLines(), []orb.Point{{0, 0}, {0.5, 0.5}, {0.5, 0}})
}

func TestCreatePolygonCommitsWithGeneratedName(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(square("P")), false)
	r.SetMode(store.ModeDraw, true, "Polygon")

	ring := orb.Polygon{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}}
	id, err := r.Create(layer.Polygon{Rings: ring})
	if err != nil {
		t.Fatalf("create polygon: %v", err)
	}

	pos := slices.IndexFunc(r.Layers(), func(l layer.Layer) bool { return l.ID == id })
	name := fmt.Sprintf("%s%d", NewPolygonPrefix, pos+1)

	c := st.Collection()
	if _, ok := c.Find(feature.IdentityKey(name, "")); !ok {
		t.Fatalf("missing %s in %v", name, c.Keys())
	}
	if _, ok := c.Find(square("P").Key()); !ok {
		t.Fatalf("existing polygon lost: %v", c.Keys())
	}
	if !st.Settings().ShowPolygons {
		t.Fatalf("drawing polygons did not show polygons")
	}

	if _, err := r.Create(layer.Polygon{Rings: orb.Polygon{{{0, 0}, {1, 1}}}}); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("degenerate polygon accepted: %v", err)
	}
}

func TestRemoveOnlyPoint(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(cluster("A", orb.Point{0, 0})), false)

	circles := circlesOf(r, "A")
	if len(circles) != 1 || len(linesOf(r, "A")) != 1 {
		t.Fatalf("single point cluster: %d circles, %d lines", len(circles), len(linesOf(r, "A")))
	}

	r.SetMode(store.ModeRemoval, true, "")
	if err := r.Remove(circles[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	r.SetMode(store.ModeRemoval, false, "")

	f, ok := st.Collection().Find(cluster("A").Key())
	if !ok {
		t.Fatalf("cluster dropped from collection: %v", st.Collection().Keys())
	}
	if mp, _ := f.MultiPoint(); len(mp) != 0 {
		t.Fatalf("cluster still has points: %v", mp)
	}
	if n, m := len(circlesOf(r, "A")), len(linesOf(r, "A")); n != 0 || m != 0 {
		t.Fatalf("after rebuild: %d circles, %d lines", n, m)
	}
}

func TestRemovePointRelinksLoop(t *testing.T) {
	t.Parallel()

	pts := []orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	r, st := newTestReconciler(t, collection(cluster("A", pts...)), false)
	r.SetMode(store.ModeRemoval, true, "")

	target := circlesOf(r, "A")[1]
	if err := r.Remove(target.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	want := []orb.Point{{0, 0}, {1, 1}, {1, 0}}
	f, _ := st.Collection().Find(cluster("A").Key())
	if mp, _ := f.MultiPoint(); !slices.Equal([]orb.Point(mp), want) {
		t.Fatalf("coordinates=%v want %v", mp, want)
	}
	assertLoop(t, linesOf(r, "A"), want)

	for _, c := range circlesOf(r, "A") {
		if got := c.Shape.(layer.Circle).Center; want[c.Index] != got {
			t.Fatalf("circle index %d points at %v, circle is at %v", c.Index, want[c.Index], got)
		}
	}
}

func TestDragUpdatesOneCoordinateAndAdjacentLines(t *testing.T) {
	t.Parallel()

	pts := []orb.Point{{0, 0}, {0, 0.01}, {0.01, 0.01}, {0.01, 0}}
	r, st := newTestReconciler(t, collection(cluster("A", pts...)), true)
	r.SetMode(store.ModeDrag, true, "")

	before := make(map[layer.ID]layer.Line)
	for _, l := range linesOf(r, "A") {
		before[l.ID] = l.Shape.(layer.Line)
	}

	moved := orb.Point{-0.02, 0.03}
	target := circlesOf(r, "A")[1]
	if err := r.Drag(target.ID, moved); err != nil {
		t.Fatalf("drag: %v", err)
	}

	want := slices.Clone(pts)
	want[1] = moved

	f, _ := st.Collection().Find(cluster("A").Key())
	if mp, _ := f.MultiPoint(); !slices.Equal([]orb.Point(mp), want) {
		t.Fatalf("coordinates=%v want %v", mp, want)
	}

	lines := linesOf(r, "A")
	assertLoop(t, lines, want)

	fresh := 0
	for _, l := range lines {
		line := l.Shape.(layer.Line)
		if old, ok := before[l.ID]; ok {
			if old != line {
				t.Fatalf("kept line %s changed: %+v -> %+v", l.ID, old, line)
			}
			continue
		}
		fresh++
		if !line.Segment(want[0], moved) && !line.Segment(moved, want[2]) {
			t.Fatalf("non adjacent line regenerated: %+v", line)
		}
		if d := geo.Distance(line.From, line.To); line.Meters != d || line.Color != geo.ColorFor(d) {
			t.Fatalf("stale distance or color on %+v", line)
		}
	}
	if fresh != 2 {
		t.Fatalf("%d lines regenerated, want 2", fresh)
	}

	dragged, _ := r.Layer(target.ID)
	if dragged.Shape.(layer.Circle).Center != moved || !strings.Contains(dragged.Popup, "Lng: -0.020000") {
		t.Fatalf("dragged circle not updated: %+v", dragged)
	}
}

func TestDragWithoutCommitStaysInMemory(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(cluster("A", orb.Point{0, 0}, orb.Point{0, 1})), false)
	r.SetMode(store.ModeDrag, true, "")

	if err := r.Drag(circlesOf(r, "A")[0].ID, orb.Point{2, 2}); err != nil {
		t.Fatalf("drag: %v", err)
	}

	stored, _ := st.Collection().Find(cluster("A").Key())
	if mp, _ := stored.MultiPoint(); mp[0] != (orb.Point{0, 0}) {
		t.Fatalf("drag reached the store: %v", mp)
	}
	working, _ := r.Working().Find(cluster("A").Key())
	if mp, _ := working.MultiPoint(); mp[0] != (orb.Point{2, 2}) {
		t.Fatalf("drag not kept in memory: %v", mp)
	}

	r.Commit()
	stored, _ = st.Collection().Find(cluster("A").Key())
	if mp, _ := stored.MultiPoint(); mp[0] != (orb.Point{2, 2}) {
		t.Fatalf("commit did not write drag: %v", mp)
	}
}

func TestDragDuplicatePointUsesCircleIndex(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(
		cluster("A", orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{0, 0}),
	), true)
	r.SetMode(store.ModeDrag, true, "")

	third := circlesOf(r, "A")[2]
	if err := r.Drag(third.ID, orb.Point{5, 5}); err != nil {
		t.Fatalf("drag: %v", err)
	}

	f, _ := st.Collection().Find(cluster("A").Key())
	want := []orb.Point{{0, 0}, {1, 1}, {5, 5}}
	if mp, _ := f.MultiPoint(); !slices.Equal([]orb.Point(mp), want) {
		t.Fatalf("coordinates=%v want %v", mp, want)
	}
}

func TestRadiusPropagation(t *testing.T) {
	t.Parallel()

	r, _ := newTestReconciler(t, collection(cluster("A", orb.Point{0, 0}, orb.Point{0, 1})), false)

	r.SetRadius(120)
	for _, c := range circlesOf(r, "A") {
		if got := c.Shape.(layer.Circle).Radius; got != 120 {
			t.Fatalf("radius=%v want 120", got)
		}
	}

	r.SetMode(store.ModeDraw, true, "Circle")
	r.SetRadius(50)
	for _, c := range circlesOf(r, "A") {
		if got := c.Shape.(layer.Circle).Radius; got != 120 {
			t.Fatalf("radius applied during draw mode: %v", got)
		}
	}
}

func TestRebuildWaitsForIdle(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(square("P")), false)
	r.SetMode(store.ModeEdit, true, "")
	if r.Mode() != store.ModeEdit {
		t.Fatalf("mode=%v", r.Mode())
	}
	if !st.Editing().Edit {
		t.Fatalf("edit flag not set")
	}

	st.SetCollection(collection(square("P"), square("Q")))
	if got := len(r.Layers()); got != 1 {
		t.Fatalf("rebuilt while editing: %d layers", got)
	}

	r.SetMode(store.ModeEdit, false, "")
	if r.Mode() != store.ModeIdle {
		t.Fatalf("mode=%v", r.Mode())
	}
	if got := len(r.Layers()); got != 2 {
		t.Fatalf("not rebuilt on idle: %d layers", got)
	}
}

func TestCollectionChangeWhileDrawingIsKept(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(square("P")), false)
	r.SetMode(store.ModeDraw, true, "Circle")

	st.ReplaceSource("geofences", []feature.Feature{square("Q")})
	if _, err := r.Create(layer.Circle{Center: orb.Point{1, 1}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	r.SetMode(store.ModeDraw, false, "Circle")

	c := st.Collection()
	for _, key := range []string{square("P").Key(), square("Q").Key(), feature.IdentityKey(layer.TagNewCircles, "")} {
		if _, ok := c.Find(key); !ok {
			t.Fatalf("missing %s in %v", key, c.Keys())
		}
	}
}

func TestPolygonEditAndCut(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(square("P"), square("Q")), false)
	r.SetMode(store.ModeEdit, true, "")

	var p, q layer.ID
	for _, l := range r.Layers() {
		switch l.Name {
		case "P":
			p = l.ID
		case "Q":
			q = l.ID
		}
	}

	edited := orb.Polygon{{{0, 0}, {3, 0}, {3, 3}, {0, 0}}}
	if err := r.Edit(p, edited); err != nil {
		t.Fatalf("edit: %v", err)
	}
	f, _ := st.Collection().Find(square("P").Key())
	if got, _ := f.Polygon(); !got.Equal(edited) {
		t.Fatalf("edit not committed: %v", got)
	}

	if err := r.Cut(q, nil); err != nil {
		t.Fatalf("cut: %v", err)
	}
	if _, ok := st.Collection().Find(square("Q").Key()); ok {
		t.Fatalf("fully cut polygon kept")
	}
}

func TestEventErrors(t *testing.T) {
	t.Parallel()

	r, _ := newTestReconciler(t, collection(cluster("A", orb.Point{0, 0}, orb.Point{0, 1})), false)

	if err := r.Remove(linesOf(r, "A")[0].ID); !errors.Is(err, ErrNotRemovable) {
		t.Fatalf("removing a line: %v", err)
	}
	if err := r.Drag("missing", orb.Point{0, 0}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dragging a missing layer: %v", err)
	}
	if err := r.Drag(circlesOf(r, "A")[0].ID, orb.Polygon{}); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("dragging a circle to a polygon: %v", err)
	}
	if err := r.Cut(circlesOf(r, "A")[0].ID, nil); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("cutting a circle: %v", err)
	}
	if _, err := r.Create(layer.Line{}); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("creating a line: %v", err)
	}
	if err := r.Activate("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("activating a missing layer: %v", err)
	}
}

func TestActivateAndPopup(t *testing.T) {
	t.Parallel()

	r, st := newTestReconciler(t, collection(square("P")), false)
	id := r.Layers()[0].ID

	if err := r.Activate(id); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if st.ActiveLayer() != id {
		t.Fatalf("active layer not set")
	}
	r.ClickMap(orb.Point{4, 5})
	if p, ok := st.PopupLocation(); !ok || p != (orb.Point{4, 5}) {
		t.Fatalf("popup location %v", p)
	}
	r.ClosePopup()
	if st.ActiveLayer() != "" {
		t.Fatalf("active layer not cleared")
	}

	r.SetMode(store.ModeDraw, true, "Polygon")
	if err := r.Activate(id); err != nil {
		t.Fatalf("activate: %v", err)
	}
	r.SetMode(store.ModeDraw, false, "Polygon")
	if st.ActiveLayer() != "" {
		t.Fatalf("leaving draw mode kept the active layer")
	}
}
