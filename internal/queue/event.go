// Package queue defines message payloads exchanged over the message broker
// along with the publisher and consumer for order confirmations.
package queue

// TicketLine summarizes the tickets of one tier within a confirmed order.
type TicketLine struct {
	TierIndex  int    `json:"tier_index"`
	TierName   string `json:"tier_name"`
	Quantity   int    `json:"quantity"`
	PriceCents uint32 `json:"price_cents"`
}

// OrderConfirmedEvent is published when a purchase completes. It carries
// enough information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database.
type OrderConfirmedEvent struct {
	OrderID     string       `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	EventID     string       `json:"event_id"`
	EventTitle  string       `json:"event_title"`
	Email       string       `json:"email"`
	FullName    string       `json:"full_name"`
	TotalCents  uint32       `json:"total_cents"`
	Lines       []TicketLine `json:"lines"`
	ConfirmedAt string       `json:"confirmed_at"`
}
