package store

import (
	"sort"

	"bookshop/pkg/domain"
)

// AggregateOrderStats computes the category breakdown in memory with the
// same inner-join rules the database pipelines use: every purchased id is
// matched against the current catalog in either id form, unmatched ids are
// dropped, and revenue uses the catalog price rather than the paid price.
func AggregateOrderStats(payments []domain.Payment, catalog []domain.Book) []domain.CategoryStat {
	groups := map[string]*domain.CategoryStat{}
	for _, p := range payments {
		for _, raw := range p.BookItemIDs {
			id := ParseID(raw)
			for _, b := range catalog {
				if !id.Matches(b.ID) {
					continue
				}
				g, ok := groups[b.Category]
				if !ok {
					g = &domain.CategoryStat{Category: b.Category}
					groups[b.Category] = g
				}
				g.Quantity++
				g.Revenue += b.Price
			}
		}
	}
	out := make([]domain.CategoryStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	SortCategoryStats(out)
	return out
}

// SortCategoryStats orders groups by category name for stable output.
func SortCategoryStats(stats []domain.CategoryStat) {
	sort.Slice(stats, func(i, j int) bool { return stats[i].Category < stats[j].Category })
}
