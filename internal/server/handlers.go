// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/layer"
	"github.com/woozymasta/fencedraw/internal/metrics"
	"github.com/woozymasta/fencedraw/internal/render"
	"github.com/woozymasta/fencedraw/internal/store"
)

// Routes registers every endpoint on a new mux wrapped in RequestLogger.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/geojson", s.HandleGeoJSON)
	mux.HandleFunc("GET /api/layers", s.HandleLayers)
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/layers", s.HandleCreate)
	mux.HandleFunc("POST /api/layers/{id}/drag", s.HandleDrag)
	mux.HandleFunc("POST /api/layers/{id}/edit", s.HandleEdit)
	mux.HandleFunc("POST /api/layers/{id}/cut", s.HandleCut)
	mux.HandleFunc("POST /api/layers/{id}/activate", s.HandleActivate)
	mux.HandleFunc("DELETE /api/layers/{id}", s.HandleRemove)
	mux.HandleFunc("POST /api/commit", s.HandleCommit)
	mux.HandleFunc("POST /api/mode", s.HandleMode)
	mux.HandleFunc("PUT /api/radius", s.HandleRadius)
	mux.HandleFunc("POST /api/popup", s.HandleMapClick)
	mux.HandleFunc("DELETE /api/popup", s.HandleClosePopup)
	mux.HandleFunc("GET /api/catalog/{kind}", s.HandleCatalog)
	mux.HandleFunc("PUT /api/selection/{kind}", s.HandleSelection)
	mux.HandleFunc("POST /api/selection/{kind}/groups/{group}", s.HandleToggleGroup)
	mux.HandleFunc("POST /api/save", s.HandleSave)
	mux.HandleFunc("GET /api/preview.svg", s.HandlePreviewSVG)
	mux.HandleFunc("GET /api/preview.webp", s.HandlePreviewWebP)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /favicon.svg", s.HandleFavicon)
	mux.HandleFunc("GET /", s.HandleIndex)

	return RequestLogger(mux)
}

// HandleGeoJSON serves the committed feature collection.
func (s *ServerContext) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	s.writeCollection(w, s.Store.Collection())
}

func (s *ServerContext) writeCollection(w http.ResponseWriter, c feature.Collection) {
	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(feature.ToGeoJSON(c))
}

// HandleLayers serves the live layers in insertion order.
func (s *ServerContext) HandleLayers(w http.ResponseWriter, r *http.Request) {
	layers := s.Reconciler.Layers()
	out := make([]layerView, 0, len(layers))
	for _, l := range layers {
		out = append(out, viewLayer(l))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleState serves the editor state.
func (s *ServerContext) HandleState(w http.ResponseWriter, r *http.Request) {
	st := stateView{
		Editing:  s.Store.Editing(),
		Mode:     s.Reconciler.Mode(),
		Radius:   s.Store.Radius(),
		Selected: s.Store.Selected(),
		Settings: s.Store.Settings(),
		Active:   s.Store.ActiveLayer(),
		Layers:   len(s.Reconciler.Layers()),
		Features: s.Store.Collection().Len(),
	}
	if p, ok := s.Store.PopupLocation(); ok {
		st.Popup = &p
	}
	if st.Selected == nil {
		st.Selected = []string{}
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCreate adds a drawn circle or polygon.
func (s *ServerContext) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	shape, err := req.shape()
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := s.Reconciler.Create(shape)
	if err != nil {
		writeError(w, err)
		return
	}
	l, _ := s.Reconciler.Layer(id)
	writeJSON(w, http.StatusCreated, viewLayer(l))
}

// HandleDrag applies the end of a drag.
func (s *ServerContext) HandleDrag(w http.ResponseWriter, r *http.Request) {
	s.moveLayer(w, r, s.Reconciler.Drag)
}

// HandleEdit applies a vertex edit.
func (s *ServerContext) HandleEdit(w http.ResponseWriter, r *http.Request) {
	s.moveLayer(w, r, s.Reconciler.Edit)
}

func (s *ServerContext) moveLayer(w http.ResponseWriter, r *http.Request, apply func(layer.ID, orb.Geometry) error) {
	var req shapeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := req.geometry()
	if err != nil {
		writeError(w, err)
		return
	}

	id := layer.ID(r.PathValue("id"))
	if err := apply(id, g); err != nil {
		writeError(w, err)
		return
	}
	l, _ := s.Reconciler.Layer(id)
	writeJSON(w, http.StatusOK, viewLayer(l))
}

// HandleCut applies a cut. An explicit empty rings list removes the
// polygon; a request without rings is rejected.
func (s *ServerContext) HandleCut(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Rings == nil {
		writeError(w, fmt.Errorf("%w: rings required", errBadRequest))
		return
	}
	if err := s.Reconciler.Cut(layer.ID(r.PathValue("id")), req.Rings); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleActivate marks a layer as clicked.
func (s *ServerContext) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id := layer.ID(r.PathValue("id"))
	if err := s.Reconciler.Activate(id); err != nil {
		writeError(w, err)
		return
	}
	l, _ := s.Reconciler.Layer(id)
	writeJSON(w, http.StatusOK, viewLayer(l))
}

// HandleRemove deletes a circle or polygon.
func (s *ServerContext) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.Reconciler.Remove(layer.ID(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCommit writes the live layers back to the collection.
func (s *ServerContext) HandleCommit(w http.ResponseWriter, r *http.Request) {
	s.writeCollection(w, s.Reconciler.Commit())
}

// HandleMode toggles an editing mode.
func (s *ServerContext) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	mode, err := store.ParseMode(req.Mode)
	if err != nil {
		writeError(w, fmt.Errorf("%w: mode %q", errBadRequest, req.Mode))
		return
	}

	s.Reconciler.SetMode(mode, req.Enabled, req.Shape)
	s.HandleState(w, r)
}

// HandleRadius sets the global circle radius.
func (s *ServerContext) HandleRadius(w http.ResponseWriter, r *http.Request) {
	var req radiusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !validRadius(req.Radius) {
		writeError(w, fmt.Errorf("%w: radius %v", errBadRequest, req.Radius))
		return
	}

	s.Reconciler.SetRadius(req.Radius)
	s.HandleState(w, r)
}

// HandleMapClick records a click on the map.
func (s *ServerContext) HandleMapClick(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Center == nil {
		writeError(w, fmt.Errorf("%w: center required", errBadRequest))
		return
	}

	s.Reconciler.ClickMap(*req.Center)
	w.WriteHeader(http.StatusNoContent)
}

// HandleClosePopup clears the active layer.
func (s *ServerContext) HandleClosePopup(w http.ResponseWriter, r *http.Request) {
	s.Reconciler.ClosePopup()
	w.WriteHeader(http.StatusNoContent)
}

// HandleCatalog lists the selectable features of a kind, loading it on
// first use.
func (s *ServerContext) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if err := s.Catalog.Load(r.Context(), kind); err != nil {
		status := http.StatusBadGateway
		if !s.knownKind(kind) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	keys := s.Catalog.Options(kind)
	view := catalogView{
		Kind:     kind,
		Options:  make([]catalogOption, 0, len(keys)),
		Groups:   s.Catalog.Groups(kind),
		Selected: s.Selector.Selected(kind),
	}
	for _, key := range keys {
		e, _ := s.Catalog.Entry(kind, key)
		view.Options = append(view.Options, catalogOption{
			Key:     key,
			Label:   s.Catalog.Label(kind, key),
			Type:    e.Feature.Type,
			Acronym: feature.Acronym(e.Feature.Type),
		})
	}
	if view.Selected == nil {
		view.Selected = []string{}
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *ServerContext) knownKind(kind string) bool {
	return slices.Contains(s.Catalog.Kinds(), kind)
}

// HandleSelection replaces the selection of a kind.
func (s *ServerContext) HandleSelection(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !s.knownKind(kind) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown kind " + kind})
		return
	}
	var req selectionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"selected": s.Selector.Set(kind, req.Keys)})
}

// HandleToggleGroup flips one type group of a kind.
func (s *ServerContext) HandleToggleGroup(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !s.knownKind(kind) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown kind " + kind})
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"selected": s.Selector.ToggleGroup(kind, r.PathValue("group"))})
}

// HandleSave pushes the committed collection to the data service.
func (s *ServerContext) HandleSave(w http.ResponseWriter, r *http.Request) {
	c := s.Store.Collection()
	res, err := s.Saver.Save(r.Context(), s.Config.Service.Save, c)
	if err != nil {
		log.Error().Err(err).Int("features", c.Len()).Msg("Failed to save collection")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePreviewSVG renders the live layers as SVG.
func (s *ServerContext) HandlePreviewSVG(w http.ResponseWriter, r *http.Request) {
	out, err := render.SVG(s.Reconciler.Layers(), s.Config.PreviewOptions(s.Store.Settings()))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(out)
}

// HandlePreviewWebP renders the live layers as WebP.
func (s *ServerContext) HandlePreviewWebP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := render.WebP(&buf, s.Reconciler.Layers(), s.Config.PreviewOptions(s.Store.Settings())); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}
