package comfort

import "slices"

// Garment is the part of a stored garment the comfort model reads.
type Garment struct {
	ID                 uint
	Category           Category
	ComfortTemperature int
}

// CategoryGroup is one display section of a candidate list.
type CategoryGroup struct {
	Category Category
	Garments []Garment
}

// SelectCandidates returns every garment whose comfort temperature is within
// tolerance degrees of target, in input order. A negative tolerance means exact match.
func SelectCandidates(garments []Garment, target, tolerance int) []Garment {
	if tolerance < 0 {
		tolerance = 0
	}

	selected := make([]Garment, 0, len(garments))
	for _, garment := range garments {
		if withinTolerance(garment.ComfortTemperature, target, tolerance) {
			selected = append(selected, garment)
		}
	}
	return selected
}

// withinTolerance compares in unsigned arithmetic so extreme targets cannot wrap.
func withinTolerance(value, target, tolerance int) bool {
	var diff uint64
	if value >= target {
		diff = uint64(value) - uint64(target)
	} else {
		diff = uint64(target) - uint64(value)
	}
	return diff <= uint64(tolerance)
}

// GroupByCategory partitions garments by category. Groups follow the table order,
// then categories the table does not rank, in the order they were first seen.
// Garment order inside a group is input order; empty groups never appear.
func GroupByCategory(garments []Garment, table *Table) []CategoryGroup {
	index := make(map[Category]int)
	groups := make([]CategoryGroup, 0)

	for _, garment := range garments {
		pos, ok := index[garment.Category]
		if !ok {
			pos = len(groups)
			index[garment.Category] = pos
			groups = append(groups, CategoryGroup{Category: garment.Category})
		}
		groups[pos].Garments = append(groups[pos].Garments, garment)
	}

	// Stable: unranked categories keep encounter order among themselves.
	slices.SortStableFunc(groups, func(a, b CategoryGroup) int {
		return compareRank(table, a.Category, b.Category)
	})
	return groups
}

// SortByCategory orders garments by category priority, unknown categories last,
// keeping the relative order of garments that share a rank.
func SortByCategory[T any](items []T, table *Table, category func(T) Category) {
	slices.SortStableFunc(items, func(a, b T) int {
		return compareRank(table, category(a), category(b))
	})
}

func compareRank(table *Table, a, b Category) int {
	rankA, okA := table.Rank(a)
	rankB, okB := table.Rank(b)
	switch {
	case okA && okB:
		return rankA - rankB
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}
