// Package store holds the editor application state and notifies observers of changes.
package store

import (
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/layer"
)

// Topic names the part of the state that changed.
type Topic int

// Topics delivered to subscribers.
const (
	TopicCollection Topic = iota
	TopicEditing
	TopicRadius
	TopicSelection
	TopicActiveLayer
	TopicPopup
	TopicSettings
)

var topicNames = [...]string{"collection", "editing", "radius", "selection", "active_layer", "popup", "settings"}

func (t Topic) String() string {
	if int(t) < len(topicNames) {
		return topicNames[t]
	}
	return "unknown"
}

// Settings are the persistent map preferences.
type Settings struct {
	Snappable       bool `json:"snappable"`
	ContinueDrawing bool `json:"continue_drawing"`
	ShowPolygons    bool `json:"show_polygons"`
	ShowCircles     bool `json:"show_circles"`
}

type subscriber struct {
	fn func(Topic)
	id int
}

// Store is the single application state shared by the reconciler, the
// selection components and the HTTP surface. Getters return copies.
type Store struct {
	popup      *orb.Point
	collection feature.Collection
	active     layer.ID
	selected   []string
	subs       []subscriber
	radius     float64
	nextSub    int
	editing    Editing
	settings   Settings
	mu         sync.RWMutex
}

// New returns a store with an empty collection.
func New(radius float64, settings Settings) *Store {
	return &Store{radius: radius, settings: settings}
}

// Subscribe registers fn for every change. The returned func unsubscribes.
// Callbacks run synchronously after the store lock is released and may call
// back into the store.
func (s *Store) Subscribe(fn func(Topic)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *Store) notify(t Topic) {
	s.mu.RLock()
	subs := slices.Clone(s.subs)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(t)
	}
}

// Collection returns a deep copy of the current feature collection.
func (s *Store) Collection() feature.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Clone()
}

// SetCollection replaces the feature collection. Duplicate identity keys
// are dropped, keeping the first.
func (s *Store) SetCollection(c feature.Collection) {
	s.mu.Lock()
	s.collection = c.Clone().Dedupe()
	s.mu.Unlock()

	s.notify(TopicCollection)
}

// ReplaceSource swaps the features loaded from one catalog kind and keeps
// every other feature in place.
func (s *Store) ReplaceSource(source string, features []feature.Feature) {
	s.mu.Lock()
	next := feature.Collection{Features: make([]feature.Feature, 0, len(s.collection.Features)+len(features))}
	for _, f := range s.collection.Features {
		if f.Source != source {
			next.Features = append(next.Features, f)
		}
	}
	for _, f := range features {
		f = f.Clone()
		f.Source = source
		next.Features = append(next.Features, f)
	}
	s.collection = next.Dedupe()
	s.mu.Unlock()

	s.notify(TopicCollection)
}

// Editing returns the current edit mode flags.
func (s *Store) Editing() Editing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing
}

// UpdateEditing applies fn to the edit flags and notifies when they changed.
func (s *Store) UpdateEditing(fn func(*Editing)) {
	s.mu.Lock()
	prev := s.editing
	fn(&s.editing)
	changed := prev != s.editing
	s.mu.Unlock()

	if changed {
		s.notify(TopicEditing)
	}
}

// Radius returns the circle radius in meters.
func (s *Store) Radius() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radius
}

// SetRadius sets the circle radius in meters.
func (s *Store) SetRadius(r float64) {
	s.mu.Lock()
	changed := s.radius != r
	s.radius = r
	s.mu.Unlock()

	if changed {
		s.notify(TopicRadius)
	}
}

// Selected returns the selected catalog keys.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected)
}

// SetSelected replaces the selected catalog keys.
func (s *Store) SetSelected(keys []string) {
	s.mu.Lock()
	s.selected = slices.Clone(keys)
	s.mu.Unlock()

	s.notify(TopicSelection)
}

// ActiveLayer returns the layer whose popup is open, if any.
func (s *Store) ActiveLayer() layer.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveLayer marks a layer as active. An empty ID clears it.
func (s *Store) SetActiveLayer(id layer.ID) {
	s.mu.Lock()
	changed := s.active != id
	s.active = id
	s.mu.Unlock()

	if changed {
		s.notify(TopicActiveLayer)
	}
}

// PopupLocation returns the last clicked map location.
func (s *Store) PopupLocation() (orb.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.popup == nil {
		return orb.Point{}, false
	}
	return *s.popup, true
}

// SetPopupLocation records a click on the map.
func (s *Store) SetPopupLocation(p orb.Point) {
	s.mu.Lock()
	s.popup = &p
	s.mu.Unlock()

	s.notify(TopicPopup)
}

// Settings returns the map preferences.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings applies fn to the map preferences.
func (s *Store) UpdateSettings(fn func(*Settings)) {
	s.mu.Lock()
	prev := s.settings
	fn(&s.settings)
	changed := prev != s.settings
	s.mu.Unlock()

	if changed {
		s.notify(TopicSettings)
	}
}
