package main

import "math"

// kmPerDegreeLat is the constant approximation used for the bounding box.
// Longitude degrees shrink with cos(lat); that divergence near the poles is
// acceptable for populated urban areas.
const kmPerDegreeLat = 111.0

// BoundingBox is an axis-aligned lat/lon rectangle used as a cheap store-side
// prefilter before exact distance checks.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func boundingBoxAround(center Coordinate, radiusKm float64) BoundingBox {
	latDelta := radiusKm / kmPerDegreeLat
	lonDelta := radiusKm / (kmPerDegreeLat * math.Cos(center.Lat*math.Pi/180))
	return BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

func (b BoundingBox) containsLon(lon float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon
}

// Haversine formula for distance in km
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in km
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)
	lat1 = lat1 * (math.Pi / 180)
	lat2 = lat2 * (math.Pi / 180)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func distanceKm(a, b Coordinate) float64 {
	return haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}
