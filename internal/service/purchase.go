// Package service contains the purchase completion flow: turning a
// session's ephemeral hold into a durable order with tickets.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aurelia-events/ticketing/internal/clock"
	"github.com/aurelia-events/ticketing/internal/model"
	"github.com/aurelia-events/ticketing/internal/queue"
	"github.com/aurelia-events/ticketing/internal/repository"
	"github.com/aurelia-events/ticketing/internal/reservation"
)

// ErrNoActiveReservation is returned when the session has no live hold for
// the event – the cart is empty or the hold expired before payment
// completed. Handlers should translate this into an HTTP 409.
var ErrNoActiveReservation = errors.New("no active reservation for this session")

// EventSource provides the durable event and tier reads the purchase flow
// needs. Implemented by repository.EventRepo.
type EventSource interface {
	FindEventTiers(ctx context.Context, eventID string) ([]model.TicketTier, error)
	FindByID(ctx context.Context, eventID string) (*model.Event, error)
}

// OrderStore persists a completed purchase. Implemented by
// repository.OrderRepo.
type OrderStore interface {
	CreateWithTickets(ctx context.Context, order model.Order, tickets []model.Ticket) error
}

// ConfirmationPublisher notifies downstream consumers of a completed order.
// Implemented by queue.Publisher.
type ConfirmationPublisher interface {
	PublishOrderConfirmed(ctx context.Context, event queue.OrderConfirmedEvent) error
}

// PurchaseService converts a session's hold into a durable order. Payment
// capture is external: the handler hands over an opaque payment reference
// and this service trusts it.
type PurchaseService struct {
	events    EventSource
	orders    OrderStore
	engine    *reservation.Engine
	publisher ConfirmationPublisher
	clock     clock.Clock
}

// NewPurchaseService constructs a PurchaseService. The publisher may be nil
// to disable confirmation messages (e.g. in tests).
func NewPurchaseService(events EventSource, orders OrderStore, engine *reservation.Engine, publisher ConfirmationPublisher, clk clock.Clock) *PurchaseService {
	if events == nil || orders == nil || engine == nil || clk == nil {
		panic("nil dependency passed to NewPurchaseService")
	}
	return &PurchaseService{events: events, orders: orders, engine: engine, publisher: publisher, clock: clk}
}

// CompletePurchaseInput carries everything needed to finalize an order.
type CompletePurchaseInput struct {
	EventID    string
	SessionID  string
	Email      string
	FullName   string
	PaymentRef string
}

// Complete reads the session's hold, mints the order and its tickets in one
// durable transaction, clears the hold, and publishes a confirmation.
// Clearing and publishing are best-effort: once the order is committed,
// their failures are logged and swallowed – the hold will expire on its own
// and the confirmation log is not the system of record.
func (s *PurchaseService) Complete(ctx context.Context, in CompletePurchaseInput) (model.Order, []model.Ticket, error) {
	entries, err := s.engine.SessionReservations(ctx, in.EventID, in.SessionID)
	if err != nil {
		return model.Order{}, nil, fmt.Errorf("read session reservations: %w", err)
	}
	if len(entries) == 0 {
		return model.Order{}, nil, ErrNoActiveReservation
	}

	event, err := s.events.FindByID(ctx, in.EventID)
	if err != nil {
		return model.Order{}, nil, err
	}
	tiers, err := s.events.FindEventTiers(ctx, in.EventID)
	if err != nil {
		return model.Order{}, nil, err
	}

	now := s.clock.Now()
	order := model.Order{
		ID:          uuid.NewString(),
		OrderNumber: orderNumber(now),
		EventID:     in.EventID,
		SessionID:   in.SessionID,
		Email:       in.Email,
		FullName:    in.FullName,
		PaymentRef:  in.PaymentRef,
		CreatedAt:   now,
	}

	var tickets []model.Ticket
	var total uint32
	lines := make([]queue.TicketLine, 0, len(entries))
	for _, entry := range entries {
		// Holds are not revalidated against the tier list between write and
		// purchase; a restructured event can leave a stale index behind.
		if entry.TierIndex < 0 || entry.TierIndex >= len(tiers) {
			return model.Order{}, nil, fmt.Errorf("held tier %d no longer exists for event %s", entry.TierIndex, in.EventID)
		}
		tier := tiers[entry.TierIndex]
		for i := 0; i < entry.Quantity; i++ {
			code, err := repository.RandomTicketCode(32)
			if err != nil {
				return model.Order{}, nil, fmt.Errorf("generate ticket code: %w", err)
			}
			tickets = append(tickets, model.Ticket{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				EventID:    in.EventID,
				TierIndex:  entry.TierIndex,
				TierName:   tier.Name,
				PriceCents: tier.PriceCents,
				Code:       code,
				CreatedAt:  now,
			})
			total += tier.PriceCents
		}
		lines = append(lines, queue.TicketLine{
			TierIndex:  entry.TierIndex,
			TierName:   tier.Name,
			Quantity:   entry.Quantity,
			PriceCents: tier.PriceCents,
		})
	}
	order.TotalCents = total

	if err := s.orders.CreateWithTickets(ctx, order, tickets); err != nil {
		return model.Order{}, nil, fmt.Errorf("persist order: %w", err)
	}

	// Past this point the purchase has happened; nothing below may fail it.
	if err := s.engine.ClearSession(ctx, in.EventID, in.SessionID); err != nil {
		log.Printf("purchase: clear session hold failed for event %s session %s: %v", in.EventID, in.SessionID, err)
	}
	if s.publisher != nil {
		confirmation := queue.OrderConfirmedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			EventID:     event.ID,
			EventTitle:  event.Title,
			Email:       order.Email,
			FullName:    order.FullName,
			TotalCents:  order.TotalCents,
			Lines:       lines,
			ConfirmedAt: now.Format(time.RFC3339),
		}
		if err := s.publisher.PublishOrderConfirmed(ctx, confirmation); err != nil {
			log.Printf("purchase: publish confirmation failed for order %s: %v", order.OrderNumber, err)
		}
	}

	return order, tickets, nil
}

// orderNumber builds a short human-facing reference like "ORD-20260828-4f2a9c".
func orderNumber(now time.Time) string {
	suffix := uuid.NewString()[:6]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
