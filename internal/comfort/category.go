// Package comfort holds the wardrobe comfort model: garment categories and their
// weights, candidate selection for a target temperature, and the arithmetic that
// turns post-wear feedback into comfort temperature nudges.
//
// Nothing in this package touches storage; callers load and persist garments.
package comfort

import (
	"maps"
	"slices"
	"strings"
)

// Category identifies a garment kind. Values outside the known set are legal and
// are kept as given; they sort after every known category.
type Category string

const (
	Outerwear Category = "outerwear"
	Tops      Category = "tops"
	Pants     Category = "pants"
	Skirt     Category = "skirt"
	OnePiece  Category = "onepiece"
	Other     Category = "other"
)

// KnownCategories lists the closed enumeration in display priority order.
var KnownCategories = []Category{Outerwear, Tops, Pants, Skirt, OnePiece, Other}

var categoryAliases = map[string]Category{
	"outerwear": Outerwear,
	"outer":     Outerwear,
	"jacket":    Outerwear,
	"tops":      Tops,
	"top":       Tops,
	"pants":     Pants,
	"bottoms":   Pants,
	"bottom":    Pants,
	"skirt":     Skirt,
	"onepiece":  OnePiece,
	"one-piece": OnePiece,
	"dress":     OnePiece,
	"other":     Other,
}

// NormalizeCategory maps user input and legacy spellings onto the known set.
// Unknown values are trimmed and lowercased but otherwise preserved.
func NormalizeCategory(raw string) Category {
	key := strings.ToLower(strings.TrimSpace(raw))
	if category, ok := categoryAliases[key]; ok {
		return category
	}
	return Category(key)
}

// Spellings lists every stored value that normalizes to c: c itself, then its
// aliases in lexical order. Listing filters use it to match legacy rows.
func Spellings(c Category) []string {
	out := []string{string(c)}
	for _, alias := range slices.Sorted(maps.Keys(categoryAliases)) {
		if categoryAliases[alias] == c && alias != string(c) {
			out = append(out, alias)
		}
	}
	return out
}

// Known reports whether c belongs to the closed enumeration.
func (c Category) Known() bool {
	for _, known := range KnownCategories {
		if c == known {
			return true
		}
	}
	return false
}
