package app

import (
	"cmp"
	"slices"

	"storefinder/internal/domain"
)

// Rank sorts in place by priority asc, distance asc, quality desc.
// Remaining ties fall back to place id so the order does not depend on input order.
func Rank(stores []domain.StoreResult) {
	slices.SortStableFunc(stores, compareResults)
}

func compareResults(a, b domain.StoreResult) int {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	if c := cmp.Compare(b.QualityScore, a.QualityScore); c != 0 {
		return c
	}
	return cmp.Compare(a.PlaceID, b.PlaceID)
}
