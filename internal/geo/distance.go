package geo

import "math"

const (
	earthRadiusMiles = 3958.8
	MetersPerMile    = 1609.34
)

// Point is a WGS 84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Miles returns the great-circle (haversine) distance between two points in miles.
func Miles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// Meters is Miles converted with the same mile constant used for radius checks.
func Meters(lat1, lng1, lat2, lng2 float64) float64 {
	return Miles(lat1, lng1, lat2, lng2) * MetersPerMile
}

// Between is Miles for two Points.
func Between(a, b Point) float64 { return Miles(a.Lat, a.Lng, b.Lat, b.Lng) }

// RadiusMiles converts a search radius in meters to the miles domain.
func RadiusMiles(radiusMeters int) float64 { return float64(radiusMeters) / MetersPerMile }

// Round3 rounds a coordinate to 3 decimal degrees (~110 m).
func Round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
