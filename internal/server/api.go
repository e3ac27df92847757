package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/paulmach/orb"

	"github.com/woozymasta/fencedraw/internal/layer"
	"github.com/woozymasta/fencedraw/internal/reconciler"
	"github.com/woozymasta/fencedraw/internal/store"
)

// maxBody caps request bodies.
const maxBody = 4 << 20

var errBadRequest = errors.New("bad request")

// layerView is the wire form of a live layer.
type layerView struct {
	ID     layer.ID    `json:"id"`
	Kind   layer.Kind  `json:"kind"`
	Pane   layer.Pane  `json:"pane"`
	Tag    string      `json:"tag,omitempty"`
	Name   string      `json:"name,omitempty"`
	Type   string      `json:"type,omitempty"`
	Popup  string      `json:"popup,omitempty"`
	Index  int         `json:"index"`
	Center *orb.Point  `json:"center,omitempty"`
	Radius float64     `json:"radius,omitempty"`
	Rings  orb.Polygon `json:"rings,omitempty"`
	From   *orb.Point  `json:"from,omitempty"`
	To     *orb.Point  `json:"to,omitempty"`
	Meters float64     `json:"meters,omitempty"`
	Color  string      `json:"color,omitempty"`
}

func viewLayer(l layer.Layer) layerView {
	v := layerView{
		ID:    l.ID,
		Kind:  l.Kind(),
		Pane:  l.Pane,
		Tag:   l.Tag,
		Name:  l.Name,
		Type:  l.Type,
		Popup: l.Popup,
		Index: l.Index,
	}

	switch s := l.Shape.(type) {
	case layer.Circle:
		v.Center, v.Radius = &s.Center, s.Radius
	case layer.Polygon:
		v.Rings = s.Rings
	case layer.Line:
		v.From, v.To, v.Meters, v.Color = &s.From, &s.To, s.Meters, s.Color
	}

	return v
}

// shapeRequest carries a circle center or polygon rings.
type shapeRequest struct {
	Shape  string      `json:"shape,omitempty"`
	Center *orb.Point  `json:"center,omitempty"`
	Rings  orb.Polygon `json:"rings,omitempty"`
	Radius float64     `json:"radius,omitempty"`
}

func (req shapeRequest) shape() (layer.Shape, error) {
	switch {
	case req.Shape == string(layer.KindCircle) || (req.Shape == "" && req.Center != nil):
		if req.Center == nil {
			return nil, fmt.Errorf("%w: circle without center", errBadRequest)
		}
		return layer.Circle{Center: *req.Center, Radius: req.Radius}, nil
	case req.Shape == string(layer.KindPolygon) || (req.Shape == "" && req.Rings != nil):
		return layer.Polygon{Rings: req.Rings}, nil
	default:
		return nil, fmt.Errorf("%w: unknown shape %q", errBadRequest, req.Shape)
	}
}

func (req shapeRequest) geometry() (orb.Geometry, error) {
	if req.Center != nil {
		return *req.Center, nil
	}
	if req.Rings != nil {
		return req.Rings, nil
	}
	return nil, fmt.Errorf("%w: center or rings required", errBadRequest)
}

type modeRequest struct {
	Mode    string `json:"mode"`
	Shape   string `json:"shape,omitempty"`
	Enabled bool   `json:"enabled"`
}

type radiusRequest struct {
	Radius float64 `json:"radius"`
}

type selectionRequest struct {
	Keys []string `json:"keys"`
}

type stateView struct {
	Editing  store.Editing  `json:"editing"`
	Mode     store.Mode     `json:"mode"`
	Radius   float64        `json:"radius"`
	Selected []string       `json:"selected"`
	Settings store.Settings `json:"settings"`
	Active   layer.ID       `json:"active_layer,omitempty"`
	Popup    *orb.Point     `json:"popup,omitempty"`
	Layers   int            `json:"layers"`
	Features int            `json:"features"`
}

type catalogOption struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Type    string `json:"type"`
	Acronym string `json:"acronym"`
}

type catalogView struct {
	Kind     string              `json:"kind"`
	Options  []catalogOption     `json:"options"`
	Groups   map[string][]string `json:"groups"`
	Selected []string            `json:"selected"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reconciler.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reconciler.ErrNotRemovable):
		status = http.StatusConflict
	case errors.Is(err, reconciler.ErrInvalidShape), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func validRadius(r float64) bool {
	return !math.IsNaN(r) && !math.IsInf(r, 0) && r >= 0
}
