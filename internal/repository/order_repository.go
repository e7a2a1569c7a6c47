package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"

	"github.com/aurelia-events/ticketing/internal/model"
)

// OrderRepo writes completed purchases to the orders and tickets tables.
// Writes are append-only; the tickets inserted here are what reduce a
// tier's durable remaining count on subsequent reads.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// CreateWithTickets inserts the order and all of its tickets in a single
// transaction so a purchase is either fully recorded or not at all.
func (r *OrderRepo) CreateWithTickets(ctx context.Context, order model.Order, tickets []model.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, event_id, session_id, email, full_name, total_cents, payment_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.EventID, order.SessionID,
		order.Email, order.FullName, order.TotalCents, order.PaymentRef,
	)
	if err != nil {
		return err
	}

	if len(tickets) > 0 {
		query := `INSERT INTO tickets (id, order_id, event_id, tier_index, tier_name, price_cents, code) VALUES `
		args := make([]interface{}, 0, len(tickets)*7)
		for i, t := range tickets {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?)"
			args = append(args, t.ID, t.OrderID, t.EventID, t.TierIndex, t.TierName, t.PriceCents, t.Code)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RandomTicketCode generates a random hexadecimal string of n bytes
// (2n characters) for use as a ticket code. The underlying call to
// crypto/rand ensures cryptographically secure random bytes.
func RandomTicketCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
