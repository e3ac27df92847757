package server

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/assets"
	"github.com/woozymasta/fencedraw/internal/config"
	"github.com/woozymasta/fencedraw/internal/datasvc"
	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/reconciler"
	"github.com/woozymasta/fencedraw/internal/selection"
	"github.com/woozymasta/fencedraw/internal/store"
)

// Saver pushes a collection to the data service.
type Saver interface {
	Save(ctx context.Context, endpoint string, fc feature.Collection) (datasvc.SaveResult, error)
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config     *config.Config
	Store      *store.Store
	Reconciler *reconciler.Reconciler
	Catalog    *selection.Catalog
	Selector   *selection.Selector
	Saver      Saver
	IndexHTML  []byte
	Favicon    []byte
}

// NewServerContext wires the editing session around st. The index page is
// minified once here; if that fails the raw page is served.
func NewServerContext(cfg *config.Config, st *store.Store, rec *reconciler.Reconciler, cat *selection.Catalog, saver Saver) *ServerContext {
	index, err := assets.Page()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to minify index page, serving it as is")
		index = assets.Index
	}

	log.Info().
		Int("index_bytes", len(index)).
		Strs("kinds", cat.Kinds()).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:     cfg,
		Store:      st,
		Reconciler: rec,
		Catalog:    cat,
		Selector:   selection.NewSelector(cat, st),
		Saver:      saver,
		IndexHTML:  index,
		Favicon:    assets.Favicon,
	}
}
