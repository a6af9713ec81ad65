package domain

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that p lies within latitude/longitude bounds.
func (p Point) Validate(field string) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: field, Reason: "latitude out of range"}
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return &ValidationError{Field: field, Reason: "longitude out of range"}
	}
	return nil
}

// DistanceFunc computes the distance in kilometres between two points.
type DistanceFunc func(a, b Point) float64

// HaversineKm returns the great-circle distance in kilometres between a and b.
func HaversineKm(a, b Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
