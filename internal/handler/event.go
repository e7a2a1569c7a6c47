package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aurelia-events/ticketing/internal/model"
	"github.com/aurelia-events/ticketing/internal/repository"
	"github.com/aurelia-events/ticketing/internal/reservation"
)

// EventHandler serves the public storefront reads: the next upcoming event
// and event detail by slug. Tier counts are reported two ways: "remaining"
// is the durable count (capacity minus sold) and "available" additionally
// subtracts tickets currently held in other buyers' carts, which is the
// number a buyer can actually reserve right now.
type EventHandler struct {
	events *repository.EventRepo
	holds  *reservation.HoldStore
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *repository.EventRepo, holds *reservation.HoldStore) *EventHandler {
	if events == nil || holds == nil {
		panic("nil dependency passed to NewEventHandler")
	}
	return &EventHandler{events: events, holds: holds}
}

type tierView struct {
	TierIndex  int    `json:"tier_index"`
	Name       string `json:"name"`
	PriceCents uint32 `json:"price_cents"`
	Remaining  int    `json:"remaining"`
	Available  int    `json:"available"`
}

type eventView struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Description   string     `json:"description,omitempty"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	VenueName     string     `json:"venue_name"`
	VenueCity     string     `json:"venue_city"`
	TotalCapacity int        `json:"total_capacity"`
	IsSoldOut     bool       `json:"is_sold_out"`
	TicketTiers   []tierView `json:"ticket_tiers"`
}

// GetUpcoming handles GET /v1/events/upcoming. Returns 404 when no
// published upcoming event exists.
func (h *EventHandler) GetUpcoming(c echo.Context) error {
	event, err := h.events.FindUpcoming(c.Request().Context())
	if err != nil {
		return eventErrorResponse(c, err)
	}
	return h.respondWithAvailability(c, event)
}

// GetBySlug handles GET /v1/events/:slug. Only published events are
// exposed; drafts behave as if they do not exist.
func (h *EventHandler) GetBySlug(c echo.Context) error {
	event, err := h.events.FindBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return eventErrorResponse(c, err)
	}
	if event.Status != "published" && event.Status != "completed" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	return h.respondWithAvailability(c, event)
}

func (h *EventHandler) respondWithAvailability(c echo.Context, event *model.Event) error {
	ctx := c.Request().Context()
	tiers, err := h.events.FindEventTiers(ctx, event.ID)
	if err != nil {
		return eventErrorResponse(c, err)
	}
	// Holds are read without any lock: this feeds display only, and a
	// slightly stale count is corrected at admission time.
	activeHolds, err := h.holds.ActiveHolds(ctx, event.ID)
	if err != nil {
		log.Printf("event: reading active holds for %s failed: %v", event.ID, err)
		activeHolds = nil
	}
	reserved := reservation.ReservedByTier(activeHolds)

	view := eventView{
		ID:            event.ID,
		Title:         event.Title,
		Slug:          event.Slug,
		Description:   event.Description,
		StartDate:     event.StartDate.Format(time.RFC3339),
		EndDate:       event.EndDate.Format(time.RFC3339),
		VenueName:     event.VenueName,
		VenueCity:     event.VenueCity,
		TotalCapacity: event.TotalCapacity,
		TicketTiers:   make([]tierView, 0, len(tiers)),
	}
	soldOut := true
	for _, tier := range tiers {
		available := tier.Remaining - reserved[tier.TierIndex]
		if available < 0 {
			available = 0
		}
		if available > 0 {
			soldOut = false
		}
		view.TicketTiers = append(view.TicketTiers, tierView{
			TierIndex:  tier.TierIndex,
			Name:       tier.Name,
			PriceCents: tier.PriceCents,
			Remaining:  tier.Remaining,
			Available:  available,
		})
	}
	view.IsSoldOut = soldOut
	return c.JSON(http.StatusOK, view)
}

func eventErrorResponse(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrEventNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	log.Printf("event: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
