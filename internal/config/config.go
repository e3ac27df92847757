// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woozymasta/fencedraw/internal/geo"
	"github.com/woozymasta/fencedraw/internal/render"
	"github.com/woozymasta/fencedraw/internal/selection"
	"github.com/woozymasta/fencedraw/internal/store"
)

// Defaults applied to missing settings.
const (
	DefaultRadius       = 70
	DefaultH3Resolution = 9
	DefaultTimeout      = 15 * time.Second
	DefaultCacheTTL     = 5 * time.Minute
)

// Config represents the root configuration file structure.
type Config struct {
	Service Service `yaml:"service" json:"service"`
	Editor  Editor  `yaml:"editor" json:"editor"`
	Cache   Cache   `yaml:"cache" json:"cache"`
	Preview Preview `yaml:"preview" json:"preview"`
}

// Service points at the remote data service.
type Service struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Instances string        `yaml:"instances" json:"instances"`
	Geofences string        `yaml:"geofences" json:"geofences"`
	Save      string        `yaml:"save" json:"save"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Editor holds the initial editor state.
type Editor struct {
	CommitOnDrag      *bool   `yaml:"commit_on_drag,omitempty" json:"commit_on_drag,omitempty"`
	H3Resolution      *int    `yaml:"h3_resolution,omitempty" json:"h3_resolution,omitempty"` // negative disables
	GeohashPrecisions []uint  `yaml:"geohash_precisions,omitempty" json:"geohash_precisions,omitempty"`
	Radius            float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	Snappable         bool    `yaml:"snappable" json:"snappable"`
	ContinueDrawing   bool    `yaml:"continue_drawing" json:"continue_drawing"`
	ShowPolygons      *bool   `yaml:"show_polygons,omitempty" json:"show_polygons,omitempty"`
	ShowCircles       *bool   `yaml:"show_circles,omitempty" json:"show_circles,omitempty"`
}

// Cache configures the data service response cache. Without a Redis
// address responses are kept in memory.
type Cache struct {
	Redis         string        `yaml:"redis,omitempty" json:"redis,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int           `yaml:"redis_db,omitempty" json:"redis_db,omitempty"`
	TTL           time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	Disabled      bool          `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Preview sizes the rendered previews.
type Preview struct {
	Width   int `yaml:"width,omitempty" json:"width,omitempty"`
	Height  int `yaml:"height,omitempty" json:"height,omitempty"`
	Padding int `yaml:"padding,omitempty" json:"padding,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified path.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset option.
func (c *Config) ApplyDefaults() {
	if c.Service.Instances == "" {
		c.Service.Instances = "/api/instance/all"
	}
	if c.Service.Geofences == "" {
		c.Service.Geofences = "/api/geofence/all"
	}
	if c.Service.Save == "" {
		c.Service.Save = "/api/instance/save"
	}
	if c.Service.Timeout <= 0 {
		c.Service.Timeout = DefaultTimeout
	}

	if c.Editor.Radius <= 0 {
		c.Editor.Radius = DefaultRadius
	}
	for _, b := range []**bool{&c.Editor.CommitOnDrag, &c.Editor.ShowPolygons, &c.Editor.ShowCircles} {
		if *b == nil {
			v := true
			*b = &v
		}
	}
	if c.Editor.H3Resolution == nil {
		v := DefaultH3Resolution
		c.Editor.H3Resolution = &v
	}
	if len(c.Editor.GeohashPrecisions) == 0 {
		c.Editor.GeohashPrecisions = []uint{9, 12}
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	def := render.DefaultOptions()
	if c.Preview.Width <= 0 {
		c.Preview.Width = def.Width
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = def.Height
	}
	if c.Preview.Padding <= 0 {
		c.Preview.Padding = def.Padding
	}
}

// Validate rejects settings the editor cannot work with.
func (c *Config) Validate() error {
	if res := *c.Editor.H3Resolution; res > 15 {
		return fmt.Errorf("h3_resolution %d out of range, max 15", res)
	}
	for _, p := range c.Editor.GeohashPrecisions {
		if p < 1 || p > 12 {
			return fmt.Errorf("geohash precision %d out of range 1..12", p)
		}
	}
	if 2*c.Preview.Padding >= min(c.Preview.Width, c.Preview.Height) {
		return fmt.Errorf("preview padding %d too large for %dx%d", c.Preview.Padding, c.Preview.Width, c.Preview.Height)
	}
	return nil
}

// Endpoints maps catalog kinds to data service endpoints.
func (c *Config) Endpoints() map[string]string {
	return map[string]string{
		selection.KindInstances: c.Service.Instances,
		selection.KindGeofences: c.Service.Geofences,
	}
}

// Label returns the point popup settings.
func (c *Config) Label() geo.PointLabel {
	return geo.PointLabel{Precisions: c.Editor.GeohashPrecisions, H3Resolution: *c.Editor.H3Resolution}
}

// Settings returns the initial editor toggles.
func (c *Config) Settings() store.Settings {
	return store.Settings{
		Snappable:       c.Editor.Snappable,
		ContinueDrawing: c.Editor.ContinueDrawing,
		ShowPolygons:    *c.Editor.ShowPolygons,
		ShowCircles:     *c.Editor.ShowCircles,
	}
}

// PreviewOptions sizes a preview; visibility follows the editor settings.
func (c *Config) PreviewOptions(s store.Settings) render.Options {
	return render.Options{
		Width:        c.Preview.Width,
		Height:       c.Preview.Height,
		Padding:      c.Preview.Padding,
		ShowPolygons: s.ShowPolygons,
		ShowCircles:  s.ShowCircles,
	}
}
