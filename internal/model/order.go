package model

import "time"

// Order is a completed purchase. Orders are append-only: once written they
// are never mutated by this service.
type Order struct {
	ID          string    // orders.id (UUID)
	OrderNumber string    // orders.order_number, short human-facing reference
	EventID     string    // orders.event_id
	SessionID   string    // orders.session_id, the buyer session that held the tickets
	Email       string    // orders.email
	FullName    string    // orders.full_name
	TotalCents  uint32    // orders.total_cents
	PaymentRef  string    // orders.payment_ref, opaque reference from the payment provider
	CreatedAt   time.Time // orders.created_at
}

// Ticket is a single admission ticket belonging to an order. The Code is
// the opaque value encoded into the ticket QR.
type Ticket struct {
	ID         string    // tickets.id (UUID)
	OrderID    string    // tickets.order_id
	EventID    string    // tickets.event_id
	TierIndex  int       // tickets.tier_index
	TierName   string    // tickets.tier_name, denormalized for display
	PriceCents uint32    // tickets.price_cents at time of sale
	Code       string    // tickets.code, random hex token
	CreatedAt  time.Time // tickets.created_at
}
