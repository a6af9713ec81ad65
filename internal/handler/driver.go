package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tripcore/internal/domain"
	"tripcore/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	LicenseExpiresAt time.Time `json:"license_expires_at"`
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SetStatusRequest is the HTTP request body for changing driver status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Status            string        `json:"status"`
	Location          *domain.Point `json:"location,omitempty"`
	LocationUpdatedAt string        `json:"location_updated_at,omitempty"`
	LicenseExpiresAt  string        `json:"license_expires_at"`
	CurrentTripID     string        `json:"current_trip_id,omitempty"`
	Version           int64         `json:"version"`
}

// NearbyDriverResponse is one entry of a nearby search.
type NearbyDriverResponse struct {
	DriverID   string  `json:"driver_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:                d.ID,
		Name:              d.Name,
		Status:            string(d.Status),
		Location:          d.Location,
		LocationUpdatedAt: formatTimePtr(d.LocationUpdatedAt),
		LicenseExpiresAt:  formatTime(d.LicenseExpiresAt),
		CurrentTripID:     d.CurrentTripID,
		Version:           d.Version,
	}
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	driver, err := h.driverService.RegisterDriver(c.Request.Context(), service.RegisterDriverRequest{
		ID:               req.ID,
		Name:             req.Name,
		Status:           domain.DriverStatus(req.Status),
		LicenseExpiresAt: req.LicenseExpiresAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	driver, err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// SetStatus handles POST /v1/drivers/:id/status
func (h *DriverHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	driver, err := h.driverService.SetStatus(c.Request.Context(), service.SetStatusRequest{
		DriverID: c.Param("id"),
		Status:   domain.DriverStatus(req.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// Nearby handles GET /v1/drivers/nearby?lat=..&lng=..&radius_km=..
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required", Kind: "validation"})
		return
	}

	var radius float64
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid radius_km", Kind: "validation"})
			return
		}
		radius = r
	}

	locations, err := h.driverService.FindNearbyDrivers(c.Request.Context(), service.NearbyDriversRequest{
		Lat:      lat,
		Lng:      lng,
		RadiusKm: radius,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyDriverResponse, 0, len(locations))
	for _, loc := range locations {
		response = append(response, NearbyDriverResponse{
			DriverID:   loc.DriverID,
			Lat:        loc.Lat,
			Lng:        loc.Lng,
			DistanceKm: loc.DistanceKm,
		})
	}

	respondJSON(c, http.StatusOK, response)
}
