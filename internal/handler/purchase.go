package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aurelia-events/ticketing/internal/middleware"
	"github.com/aurelia-events/ticketing/internal/model"
	"github.com/aurelia-events/ticketing/internal/repository"
	"github.com/aurelia-events/ticketing/internal/service"
)

// PurchaseHandler finalizes a checkout: it turns the session's hold into a
// durable order. Payment itself happens out-of-band; the client submits the
// provider's reference once payment succeeded.
type PurchaseHandler struct {
	purchases *service.PurchaseService
}

// NewPurchaseHandler constructs a PurchaseHandler.
func NewPurchaseHandler(purchases *service.PurchaseService) *PurchaseHandler {
	if purchases == nil {
		panic("nil purchase service passed to NewPurchaseHandler")
	}
	return &PurchaseHandler{purchases: purchases}
}

type completePurchaseRequest struct {
	EventID    string `json:"event_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	PaymentRef string `json:"payment_ref"`
}

// Complete handles POST /v1/purchase. Responds 201 with the order and its
// tickets, 409 when the session has no live hold (expired or never
// created), 404 for unknown events.
func (h *PurchaseHandler) Complete(c echo.Context) error {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing session"})
	}

	var body completePurchaseRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}
	body.Email = strings.TrimSpace(body.Email)
	body.FullName = strings.TrimSpace(body.FullName)
	if body.Email == "" || !strings.Contains(body.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email is required"})
	}
	if body.FullName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "full_name is required"})
	}
	if body.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref is required"})
	}

	order, tickets, err := h.purchases.Complete(c.Request().Context(), service.CompletePurchaseInput{
		EventID:    body.EventID,
		SessionID:  sessionID,
		Email:      body.Email,
		FullName:   body.FullName,
		PaymentRef: body.PaymentRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveReservation):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrEventNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		default:
			log.Printf("purchase: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"order":   orderView(order),
		"tickets": ticketViews(tickets),
	})
}

func orderView(o model.Order) echo.Map {
	return echo.Map{
		"id":           o.ID,
		"order_number": o.OrderNumber,
		"event_id":     o.EventID,
		"email":        o.Email,
		"full_name":    o.FullName,
		"total_cents":  o.TotalCents,
		"created_at":   o.CreatedAt.Format(time.RFC3339),
	}
}

func ticketViews(tickets []model.Ticket) []echo.Map {
	views := make([]echo.Map, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, echo.Map{
			"id":          t.ID,
			"tier_index":  t.TierIndex,
			"tier_name":   t.TierName,
			"price_cents": t.PriceCents,
			"code":        t.Code,
		})
	}
	return views
}
