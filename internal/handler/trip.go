package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripcore/internal/domain"
	"tripcore/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService     *service.TripService
	coordinator     *service.AssignmentCoordinator
	matchingService *service.MatchingService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(
	tripService *service.TripService,
	coordinator *service.AssignmentCoordinator,
	matchingService *service.MatchingService,
) *TripHandler {
	return &TripHandler{
		tripService:     tripService,
		coordinator:     coordinator,
		matchingService: matchingService,
	}
}

// RequestTripRequest is the HTTP request body for requesting a trip.
type RequestTripRequest struct {
	PassengerID string       `json:"passenger_id"`
	Origin      domain.Point `json:"origin"`
	Destination domain.Point `json:"destination"`
	Currency    string       `json:"currency"`
}

// AssignDriverRequest is the HTTP request body for assigning a driver.
type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

// MatchTripRequest is the optional HTTP request body for matching a trip.
type MatchTripRequest struct {
	RadiusKm float64 `json:"radius_km"`
}

// CancelTripRequest is the HTTP request body for cancelling a trip.
type CancelTripRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	TripID       string       `json:"trip_id"`
	PassengerID  string       `json:"passenger_id"`
	DriverID     string       `json:"driver_id,omitempty"`
	Origin       domain.Point `json:"origin"`
	Destination  domain.Point `json:"destination"`
	Currency     string       `json:"currency"`
	Status       string       `json:"status"`
	CreatedAt    string       `json:"created_at"`
	AssignedAt   string       `json:"assigned_at,omitempty"`
	StartedAt    string       `json:"started_at,omitempty"`
	CompletedAt  string       `json:"completed_at,omitempty"`
	CancelledAt  string       `json:"cancelled_at,omitempty"`
	CancelledBy  string       `json:"cancelled_by,omitempty"`
	CancelReason string       `json:"cancel_reason,omitempty"`
	Version      int64        `json:"version"`
}

// FeeResponse describes a cancellation fee.
type FeeResponse struct {
	Charged   bool   `json:"charged"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

// AssignDriverResponse is the HTTP response for a successful assignment.
type AssignDriverResponse struct {
	Trip    TripResponse `json:"trip"`
	EventID string       `json:"event_id"`
}

// CancelTripResponse is the HTTP response for a cancellation.
type CancelTripResponse struct {
	Trip           TripResponse `json:"trip"`
	Fee            FeeResponse  `json:"fee"`
	ReleasedDriver string       `json:"released_driver_id,omitempty"`
	EventID        string       `json:"event_id"`
}

func toTripResponse(trip *domain.Trip) TripResponse {
	return TripResponse{
		TripID:       trip.ID,
		PassengerID:  trip.PassengerID,
		DriverID:     trip.DriverID,
		Origin:       trip.Origin,
		Destination:  trip.Destination,
		Currency:     trip.Currency,
		Status:       string(trip.Status),
		CreatedAt:    formatTime(trip.CreatedAt),
		AssignedAt:   formatTimePtr(trip.AssignedAt),
		StartedAt:    formatTimePtr(trip.StartedAt),
		CompletedAt:  formatTimePtr(trip.CompletedAt),
		CancelledAt:  formatTimePtr(trip.CancelledAt),
		CancelledBy:  string(trip.CancelledBy),
		CancelReason: trip.CancelReason,
		Version:      trip.Version,
	}
}

func toFeeResponse(fee domain.CancellationFee) FeeResponse {
	return FeeResponse{
		Charged:   fee.Charged,
		Amount:    fee.Fee.Amount,
		Currency:  fee.Fee.Currency,
		Formatted: fee.Fee.String(),
	}
}

// RequestTrip handles POST /v1/trips
func (h *TripHandler) RequestTrip(c *gin.Context) {
	var req RequestTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	trip, err := h.tripService.RequestTrip(c.Request.Context(), service.RequestTripRequest{
		PassengerID: req.PassengerID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Currency:    req.Currency,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// AssignDriver handles POST /v1/trips/:id/assign
func (h *TripHandler) AssignDriver(c *gin.Context) {
	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	result, err := h.coordinator.AssignDriver(c.Request.Context(), service.AssignDriverRequest{
		TripID:   c.Param("id"),
		DriverID: req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AssignDriverResponse{
		Trip:    toTripResponse(result.Trip),
		EventID: result.EventID,
	})
}

// MatchTrip handles POST /v1/trips/:id/match
func (h *TripHandler) MatchTrip(c *gin.Context) {
	var req MatchTripRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
			return
		}
	}

	result, err := h.matchingService.MatchTrip(c.Request.Context(), service.MatchTripRequest{
		TripID:   c.Param("id"),
		RadiusKm: req.RadiusKm,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AssignDriverResponse{
		Trip:    toTripResponse(result.Trip),
		EventID: result.EventID,
	})
}

// StartTrip handles POST /v1/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	trip, err := h.tripService.StartTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// CompleteTrip handles POST /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	trip, err := h.tripService.CompleteTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	var req CancelTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: "validation"})
		return
	}

	actor, err := domain.ParseActor(req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.tripService.CancelTrip(c.Request.Context(), service.CancelTripRequest{
		TripID: c.Param("id"),
		Actor:  actor,
		Reason: req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CancelTripResponse{
		Trip:           toTripResponse(result.Trip),
		Fee:            toFeeResponse(result.Fee),
		ReleasedDriver: result.ReleasedDriver,
		EventID:        result.EventID,
	})
}

// QuoteCancellationFee handles GET /v1/trips/:id/cancellation-fee?actor=PASSENGER
func (h *TripHandler) QuoteCancellationFee(c *gin.Context) {
	actor, err := domain.ParseActor(c.DefaultQuery("actor", string(domain.ActorPassenger)))
	if err != nil {
		respondError(c, err)
		return
	}

	fee, err := h.tripService.QuoteCancellationFee(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toFeeResponse(fee))
}
