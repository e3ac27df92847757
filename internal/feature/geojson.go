package feature

import (
	"maps"

	"github.com/paulmach/orb/geojson"
)

// FromGeoJSON converts a GeoJSON feature collection. Features without a
// name property are dropped. Every kept feature is tagged with source.
func FromGeoJSON(fc *geojson.FeatureCollection, source string) Collection {
	if fc == nil {
		return Collection{}
	}
	return FromGeoJSONFeatures(fc.Features, source)
}

// FromGeoJSONFeatures converts a bare list of GeoJSON features. Known
// CamelCase type names are normalized to snake_case.
func FromGeoJSONFeatures(features []*geojson.Feature, source string) Collection {
	out := Collection{Features: make([]Feature, 0, len(features))}

	for _, gf := range features {
		if gf == nil {
			continue
		}
		name := gf.Properties.MustString(PropName, "")
		if name == "" {
			continue
		}

		typ := gf.Properties.MustString(PropType, "")
		if t, ok := ParseType(typ); ok {
			typ = t
		}

		out.Features = append(out.Features, Feature{
			Name:       name,
			Type:       typ,
			Source:     source,
			Geometry:   gf.Geometry,
			Properties: maps.Clone(map[string]any(gf.Properties)),
		})
	}

	return out
}

// ToGeoJSON converts the collection back to GeoJSON. Name and type are
// written into the properties; an empty type is left out.
func ToGeoJSON(c Collection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, f := range c.Features {
		gf := geojson.NewFeature(f.Geometry)
		props := make(geojson.Properties, len(f.Properties)+2)
		maps.Copy(props, f.Properties)

		props[PropName] = f.Name
		if f.Type != "" {
			props[PropType] = f.Type
		} else {
			delete(props, PropType)
		}
		gf.Properties = props

		fc.Append(gf)
	}

	return fc
}
