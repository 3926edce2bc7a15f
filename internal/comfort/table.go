package comfort

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultWeight applies to categories the table does not list.
const DefaultWeight = 0.5

var ErrInvalidTable = errors.New("invalid category table")

// Table is the single category configuration shared by filtering (display order)
// and adaptation (weights). It is read-only once built.
type Table struct {
	order         []Category
	rank          map[Category]int
	weights       map[Category]float64
	defaultWeight float64
}

// tableFile is the YAML layout accepted by LoadTable.
//
//	order: [outerwear, tops, pants, skirt, onepiece, other]
//	default_weight: 0.5
//	weights:
//	  outerwear: 1.0
type tableFile struct {
	Order         []string           `yaml:"order"`
	DefaultWeight *float64           `yaml:"default_weight"`
	Weights       map[string]float64 `yaml:"weights"`
}

// DefaultTable returns the stock weights; stored comfort temperatures were tuned against these.
func DefaultTable() *Table {
	t, _ := newTable(KnownCategories, map[Category]float64{
		Outerwear: 1.0,
		Tops:      0.8,
		Pants:     0.6,
		Skirt:     0.6,
		OnePiece:  0.8,
		Other:     0.5,
	}, DefaultWeight)
	return t
}

// LoadTable reads overrides from a YAML file on top of DefaultTable.
// An empty path yields the default table.
func LoadTable(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTable(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category table: %w", err)
	}
	return ParseTable(raw)
}

// ParseTable decodes YAML overrides on top of DefaultTable.
func ParseTable(raw []byte) (*Table, error) {
	var file tableFile
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	base := DefaultTable()

	order := base.order
	if len(file.Order) > 0 {
		order = make([]Category, 0, len(file.Order))
		for _, name := range file.Order {
			order = append(order, NormalizeCategory(name))
		}
	}

	weights := make(map[Category]float64, len(base.weights))
	for category, weight := range base.weights {
		weights[category] = weight
	}
	for name, weight := range file.Weights {
		weights[NormalizeCategory(name)] = weight
	}

	defaultWeight := base.defaultWeight
	if file.DefaultWeight != nil {
		defaultWeight = *file.DefaultWeight
	}

	return newTable(order, weights, defaultWeight)
}

func newTable(order []Category, weights map[Category]float64, defaultWeight float64) (*Table, error) {
	if defaultWeight < 0 || defaultWeight > 1 {
		return nil, fmt.Errorf("%w: default weight %.2f outside [0,1]", ErrInvalidTable, defaultWeight)
	}

	rank := make(map[Category]int, len(order))
	for i, category := range order {
		if category == "" {
			return nil, fmt.Errorf("%w: empty category in order", ErrInvalidTable)
		}
		if _, dup := rank[category]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q in order", ErrInvalidTable, category)
		}
		rank[category] = i
	}

	for category, weight := range weights {
		if weight < 0 || weight > 1 {
			return nil, fmt.Errorf("%w: weight for %q is %.2f, outside [0,1]", ErrInvalidTable, category, weight)
		}
	}

	return &Table{
		order:         append([]Category(nil), order...),
		rank:          rank,
		weights:       weights,
		defaultWeight: defaultWeight,
	}, nil
}

// Weight returns the adaptation weight for a category.
func (t *Table) Weight(category Category) float64 {
	if weight, ok := t.weights[category]; ok {
		return weight
	}
	return t.defaultWeight
}

// Rank returns the display position of a category and whether it is ranked at all.
func (t *Table) Rank(category Category) (int, bool) {
	rank, ok := t.rank[category]
	return rank, ok
}

// Order returns a copy of the configured display order.
func (t *Table) Order() []Category {
	return append([]Category(nil), t.order...)
}

// DefaultWeight returns the weight used for unlisted categories.
func (t *Table) DefaultWeight() float64 {
	return t.defaultWeight
}
