package feature

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestFromGeoJSONDropsNamelessAndNormalizesTypes(t *testing.T) {
	t.Parallel()

	raw := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"A","type":"circle_pokemon"},
		 "geometry":{"type":"MultiPoint","coordinates":[[0,0],[0,1]]}},
		{"type":"Feature","properties":{"type":"pokemon_iv"},
		 "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"type":"Feature","properties":{"name":"B"},
		 "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"type":"Feature","properties":{"name":"C","type":"PokemonIv"},
		 "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"type":"Feature","properties":{"name":"D","type":"circle"},
		 "geometry":{"type":"MultiPoint","coordinates":[[0,0]]}}
	]}`

	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	c := FromGeoJSON(fc, "instances")
	if c.Len() != 4 {
		t.Fatalf("got %d features, want 4", c.Len())
	}
	if got := c.Keys(); !slices.Equal(got, []string{"A-circle_pokemon", "B-", "C-pokemon_iv", "D-circle"}) {
		t.Fatalf("unexpected keys %v", got)
	}
	if c.Features[0].Source != "instances" {
		t.Fatalf("source not set: %q", c.Features[0].Source)
	}
	if mp, ok := c.Features[0].MultiPoint(); !ok || len(mp) != 2 {
		t.Fatalf("geometry not kept: %#v", c.Features[0].Geometry)
	}
}

func TestToGeoJSONWritesIdentity(t *testing.T) {
	t.Parallel()

	c := Collection{Features: []Feature{
		{Name: "A", Type: TypePokemonIV, Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		{Name: "new_circles", Geometry: orb.MultiPoint{{1, 1}}, Properties: map[string]any{PropRadius: 70.0, PropType: "stale"}},
	}}

	data, err := json.Marshal(ToGeoJSON(c))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	back, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := back.Features[0].Properties.MustString(PropType, ""); got != TypePokemonIV {
		t.Fatalf("type=%q", got)
	}
	if _, ok := back.Features[1].Properties[PropType]; ok {
		t.Fatalf("untyped feature got a type property")
	}
	if got := back.Features[1].Properties.MustFloat64(PropRadius, 0); got != 70 {
		t.Fatalf("radius=%v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := Collection{Features: []Feature{
		{Name: "A", Type: "t", Geometry: orb.MultiPoint{{0, 0}, {1, 1}}, Properties: map[string]any{"k": "v"}},
	}}
	cp := orig.Clone()

	mp, _ := cp.Features[0].MultiPoint()
	mp[0] = orb.Point{5, 5}
	cp.Features[0].Properties["k"] = "changed"

	origMP, _ := orig.Features[0].MultiPoint()
	if origMP[0] != (orb.Point{0, 0}) {
		t.Fatalf("clone shares geometry")
	}
	if orig.Features[0].Properties["k"] != "v" {
		t.Fatalf("clone shares properties")
	}
}

func TestDedupeKeepsFirst(t *testing.T) {
	t.Parallel()

	c := Collection{Features: []Feature{
		{Name: "A", Type: "x", Properties: map[string]any{"n": 1}},
		{Name: "A", Type: "y"},
		{Name: "A", Type: "x", Properties: map[string]any{"n": 2}},
	}}
	got := c.Dedupe()
	if got.Len() != 2 || got.Features[0].Properties["n"] != 1 {
		t.Fatalf("unexpected dedupe result %+v", got.Features)
	}
}

func TestTypes(t *testing.T) {
	t.Parallel()

	if got, ok := ParseType("CircleSmartRaid"); !ok || got != TypeCircleSmartRaid {
		t.Fatalf("ParseType CamelCase=%q,%v", got, ok)
	}
	if got, ok := ParseType("auto_tth"); !ok || got != TypeAutoTTH {
		t.Fatalf("ParseType snake_case=%q,%v", got, ok)
	}
	if _, ok := ParseType("bogus"); ok {
		t.Fatalf("ParseType accepted unknown name")
	}
	if got := TypeForGeometry(orb.MultiPoint{}); got != TypeCircleSmartPokemon {
		t.Fatalf("TypeForGeometry(MultiPoint)=%q", got)
	}
	if got := TypeForGeometry(orb.Polygon{}); got != TypePokemonIV {
		t.Fatalf("TypeForGeometry(Polygon)=%q", got)
	}
	if got := Acronym("PokemonIv"); got != "IV" {
		t.Fatalf("Acronym=%q", got)
	}
	if got := Acronym(""); got != "U" {
		t.Fatalf("Acronym(empty)=%q", got)
	}
}
