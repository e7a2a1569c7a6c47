package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aurelia-events/ticketing/internal/middleware"
	"github.com/aurelia-events/ticketing/internal/repository"
	"github.com/aurelia-events/ticketing/internal/reservation"
)

// ReservationHandler exposes the reservation engine over HTTP. The buyer
// session set by the session middleware is the reservation handle; there is
// no separate reservation ID.
type ReservationHandler struct {
	engine *reservation.Engine
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(engine *reservation.Engine) *ReservationHandler {
	if engine == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	return &ReservationHandler{engine: engine}
}

// reserveRequest accepts both request shapes: a single tier/quantity pair,
// or a batch under "reservations". When both are present the batch wins.
type reserveRequest struct {
	EventID      string                    `json:"event_id"`
	TierIndex    *int                      `json:"tier_index"`
	Quantity     *int                      `json:"quantity"`
	Reservations []reservation.TierRequest `json:"reservations"`
}

// Reserve handles POST /v1/reserve. It places a temporary, expiring claim
// on the requested tiers for the caller's session, replacing whatever the
// session previously held for this event. Responds 201 with the session
// handle and server creation timestamp so clients can synchronize their
// countdown timers.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing session"})
	}

	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}

	requests := body.Reservations
	if len(requests) == 0 && body.TierIndex != nil && body.Quantity != nil {
		requests = []reservation.TierRequest{{TierIndex: *body.TierIndex, Quantity: *body.Quantity}}
	}

	receipt, err := h.engine.ReserveBatch(c.Request().Context(), body.EventID, sessionID, requests)
	if err != nil {
		return reservationErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"session_id": receipt.SessionID,
		"created_at": receipt.CreatedAt.Format(time.RFC3339),
	})
}

// ListSession handles GET /v1/reservations?event_id=. It returns the
// session's current cart; an empty cart is an empty list, not an error.
func (h *ReservationHandler) ListSession(c echo.Context) error {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing session"})
	}
	eventID := c.QueryParam("event_id")
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id query parameter is required"})
	}
	entries, err := h.engine.SessionReservations(c.Request().Context(), eventID, sessionID)
	if err != nil {
		return reservationErrorResponse(c, err)
	}
	if entries == nil {
		entries = []reservation.TierRequest{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": entries})
}

// ClearSession handles DELETE /v1/reservations?event_id=. It empties the
// session's cart; clearing an already-empty cart succeeds.
func (h *ReservationHandler) ClearSession(c echo.Context) error {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing session"})
	}
	eventID := c.QueryParam("event_id")
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id query parameter is required"})
	}
	if err := h.engine.ClearSession(c.Request().Context(), eventID, sessionID); err != nil {
		return reservationErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// reservationErrorResponse maps the engine's failure kinds to HTTP statuses.
// Transient conditions (busy event, lost availability race) are
// distinguished from caller errors; anything unrecognized is an
// infrastructure failure, logged and surfaced as a generic 500.
func reservationErrorResponse(c echo.Context, err error) error {
	var tierErr *reservation.TierNotFoundError
	var capErr *reservation.CapacityExceededError
	var availErr *reservation.InsufficientAvailabilityError
	switch {
	case errors.Is(err, reservation.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.As(err, &tierErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": tierErr.Error()})
	case errors.As(err, &capErr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":     capErr.Error(),
			"remaining": capErr.Remaining,
		})
	case errors.Is(err, reservation.ErrEventBusy):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	case errors.As(err, &availErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":      availErr.Error(),
			"tier_index": availErr.TierIndex,
			"available":  availErr.Available,
			"requested":  availErr.Requested,
		})
	default:
		log.Printf("reservation: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
