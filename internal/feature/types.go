package feature

import "github.com/paulmach/orb"

// Type names understood by the data service.
const (
	TypeAutoQuest          = "auto_quest"
	TypeCirclePokemon      = "circle_pokemon"
	TypeCircleSmartPokemon = "circle_smart_pokemon"
	TypeCircleRaid         = "circle_raid"
	TypeCircleSmartRaid    = "circle_smart_raid"
	TypePokemonIV          = "pokemon_iv"
	TypeLeveling           = "leveling"
	TypeCircleQuest        = "circle_quest"
	TypeAutoTTH            = "auto_tth"
	TypeAutoPokemon        = "auto_pokemon"
)

var knownTypes = map[string]string{
	"AutoQuest":          TypeAutoQuest,
	"CirclePokemon":      TypeCirclePokemon,
	"CircleSmartPokemon": TypeCircleSmartPokemon,
	"CircleRaid":         TypeCircleRaid,
	"CircleSmartRaid":    TypeCircleSmartRaid,
	"PokemonIv":          TypePokemonIV,
	"Leveling":           TypeLeveling,
	"CircleQuest":        TypeCircleQuest,
	"AutoTth":            TypeAutoTTH,
	"AutoPokemon":        TypeAutoPokemon,
}

var acronyms = map[string]string{
	TypeAutoQuest:          "AQ",
	TypeCirclePokemon:      "CP",
	TypeCircleSmartPokemon: "CSP",
	TypeCircleRaid:         "CR",
	TypeCircleSmartRaid:    "CSR",
	TypePokemonIV:          "IV",
	TypeLeveling:           "L",
	TypeCircleQuest:        "CQ",
	TypeAutoTTH:            "ATTH",
	TypeAutoPokemon:        "AP",
}

// ParseType normalizes a CamelCase or snake_case type name.
// It returns false for unknown names.
func ParseType(s string) (string, bool) {
	if t, ok := knownTypes[s]; ok {
		return t, true
	}
	if _, ok := acronyms[s]; ok {
		return s, true
	}
	return "", false
}

// TypeForGeometry picks the default type for features saved without one.
func TypeForGeometry(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point:
		return TypeLeveling
	case orb.MultiPoint:
		return TypeCircleSmartPokemon
	case orb.Polygon:
		return TypePokemonIV
	case orb.MultiPolygon:
		return TypeAutoQuest
	default:
		return ""
	}
}

// Acronym returns the short label of a type, "U" when unknown.
func Acronym(typ string) string {
	if t, ok := ParseType(typ); ok {
		return acronyms[t]
	}
	return "U"
}
