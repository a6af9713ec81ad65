package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tripcore/internal/domain"
	"tripcore/internal/outbox"
)

// OutboxHandler exposes the outbox to operators.
type OutboxHandler struct {
	monitor *outbox.Monitor
}

// NewOutboxHandler creates a new OutboxHandler.
func NewOutboxHandler(monitor *outbox.Monitor) *OutboxHandler {
	return &OutboxHandler{monitor: monitor}
}

// OutboxEventResponse is the HTTP response for an outbox event.
type OutboxEventResponse struct {
	ID            string `json:"id"`
	AggregateType string `json:"aggregate_type"`
	AggregateID   string `json:"aggregate_id"`
	EventType     string `json:"event_type"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	NextAttemptAt string `json:"next_attempt_at"`
	CreatedAt     string `json:"created_at"`
	SentAt        string `json:"sent_at,omitempty"`
	FailedAt      string `json:"failed_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// ListEvents handles GET /v1/outbox/events?status=FAILED&limit=50
func (h *OutboxHandler) ListEvents(c *gin.Context) {
	status := domain.OutboxStatus(strings.ToUpper(c.DefaultQuery("status", string(domain.OutboxStatusFailed))))

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Kind: "validation"})
			return
		}
		limit = n
	}

	events, err := h.monitor.ListEvents(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OutboxEventResponse, 0, len(events))
	for _, ev := range events {
		response = append(response, OutboxEventResponse{
			ID:            ev.ID,
			AggregateType: ev.AggregateType,
			AggregateID:   ev.AggregateID,
			EventType:     ev.EventType,
			Status:        string(ev.Status),
			Attempts:      ev.Attempts,
			NextAttemptAt: formatTime(ev.NextAttemptAt),
			CreatedAt:     formatTime(ev.CreatedAt),
			SentAt:        formatTimePtr(ev.SentAt),
			FailedAt:      formatTimePtr(ev.FailedAt),
			LastError:     ev.LastError,
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// Stats handles GET /admin/outbox/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	counts, err := h.monitor.Backlog(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make(map[string]int, len(counts))
	for status, n := range counts {
		response[string(status)] = n
	}
	respondJSON(c, http.StatusOK, response)
}
