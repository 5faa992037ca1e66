package app

import (
	"storefinder/internal/domain"
	"storefinder/internal/geo"
)

// ProximityMeters is the distance under which two results are treated as the same store.
const ProximityMeters = 100.0

// Dedupe drops repeated provider ids, then collapses results closer than ProximityMeters,
// keeping the higher quality score. Equal scores keep the first-seen result.
// The input slice is not modified.
func Dedupe(in []domain.StoreResult) []domain.StoreResult {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.StoreResult, 0, len(in))

	for _, s := range in {
		if _, dup := seen[s.PlaceID]; dup {
			continue
		}

		// every accepted result within range must lose to s, otherwise s is dropped
		var conflicts []int
		dominated := false
		for i, kept := range out {
			if geo.Meters(s.Lat, s.Lng, kept.Lat, kept.Lng) >= ProximityMeters {
				continue
			}
			if s.QualityScore <= kept.QualityScore {
				dominated = true
				break
			}
			conflicts = append(conflicts, i)
		}
		if dominated {
			continue
		}

		if len(conflicts) > 0 {
			out = removeIndexes(out, conflicts)
		}
		seen[s.PlaceID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// removeIndexes removes ascending idx positions preserving order.
func removeIndexes(s []domain.StoreResult, idx []int) []domain.StoreResult {
	out := s[:0]
	j := 0
	for i := range s {
		if j < len(idx) && idx[j] == i {
			j++
			continue
		}
		out = append(out, s[i])
	}
	return out
}
