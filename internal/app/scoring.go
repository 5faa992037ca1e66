package app

import (
	"math"

	"storefinder/internal/domain"
)

// Score ranks a place by rating, review volume, distance (miles), contactability and open status.
// The result is never negative.
func Score(d domain.PlaceDetails, distance float64) float64 {
	score := 0.0

	if d.Rating != nil {
		score += *d.Rating
	}
	if d.RatingCount != nil && *d.RatingCount > 0 {
		score += math.Min(2.0, math.Log10(float64(*d.RatingCount)))
	}

	score -= math.Min(3.0, distance/5.0)

	if d.Phone != nil && *d.Phone != "" {
		score += 0.5
	}
	if d.Website != nil && *d.Website != "" {
		score += 0.5
	}
	if d.OpenNow != nil && *d.OpenNow {
		score += 1.0
	}

	return math.Max(0, score)
}
