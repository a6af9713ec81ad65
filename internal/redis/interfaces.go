package redis

import "context"

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, tenantID, driverID string) error
}

// Ensure concrete types implement interfaces.
var _ LocationStoreInterface = (*LocationStore)(nil)
