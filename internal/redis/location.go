package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DriverLocation represents a driver's position.
type DriverLocation struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// LocationStore indexes driver locations per tenant in Redis.
type LocationStore struct {
	client redis.UniversalClient
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client redis.UniversalClient) *LocationStore {
	return &LocationStore{client: client}
}

func locationKey(tenantID string) string {
	return fmt.Sprintf("tenants:%s:drivers:locations", tenantID)
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, locationKey(tenantID), &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyDrivers returns the tenant's drivers within radiusKm, nearest first.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64) ([]DriverLocation, error) {
	results, err := s.client.GeoSearchLocation(ctx, locationKey(tenantID), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]DriverLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, DriverLocation{
			DriverID:   r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}

	return locations, nil
}

// RemoveLocation removes a driver's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, tenantID, driverID string) error {
	return s.client.ZRem(ctx, locationKey(tenantID), driverID).Err()
}
