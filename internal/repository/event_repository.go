package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aurelia-events/ticketing/internal/model"
)

// EventRepo provides read access to events and their ticket tiers. Tiers
// are read-only from this service's perspective: remaining counts change
// only through durable ticket creation (see OrderRepo).
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying pool so services can open transactions that
// span repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

// FindEventTiers returns the event's tiers ordered by tier index, each with
// remaining = capacity - permanently sold tickets as of this read. Returns
// ErrEventNotFound when the event does not exist. The result deliberately
// excludes in-flight holds; callers that need true availability must
// subtract active holds from the ephemeral store.
func (r *EventRepo) FindEventTiers(ctx context.Context, eventID string) ([]model.TicketTier, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	const q = `SELECT tt.tier_index, tt.name, tt.price_cents, tt.capacity,
	                  tt.capacity - COUNT(t.id) AS remaining
	           FROM ticket_tiers tt
	           LEFT JOIN tickets t
	             ON t.event_id = tt.event_id AND t.tier_index = tt.tier_index
	           WHERE tt.event_id = ?
	           GROUP BY tt.tier_index, tt.name, tt.price_cents, tt.capacity
	           ORDER BY tt.tier_index`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tiers []model.TicketTier
	for rows.Next() {
		var t model.TicketTier
		if err := rows.Scan(&t.TierIndex, &t.Name, &t.PriceCents, &t.Capacity, &t.Remaining); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tiers, nil
}

// FindUpcoming returns the next published event that has not yet started.
// Returns ErrEventNotFound when there is no upcoming event.
func (r *EventRepo) FindUpcoming(ctx context.Context) (*model.Event, error) {
	const q = `SELECT id, title, slug, description, start_date, end_date,
	                  venue_name, venue_city, total_capacity, status, created_at
	           FROM events
	           WHERE status = 'published' AND start_date > UTC_TIMESTAMP()
	           ORDER BY start_date ASC
	           LIMIT 1`
	return r.scanEvent(r.db.QueryRowContext(ctx, q))
}

// FindByID returns the event with the given ID, or ErrEventNotFound.
func (r *EventRepo) FindByID(ctx context.Context, eventID string) (*model.Event, error) {
	const q = `SELECT id, title, slug, description, start_date, end_date,
	                  venue_name, venue_city, total_capacity, status, created_at
	           FROM events
	           WHERE id = ?`
	return r.scanEvent(r.db.QueryRowContext(ctx, q, eventID))
}

// FindBySlug returns the event with the given URL slug, regardless of
// status; handlers decide what non-published events should expose.
func (r *EventRepo) FindBySlug(ctx context.Context, slug string) (*model.Event, error) {
	const q = `SELECT id, title, slug, description, start_date, end_date,
	                  venue_name, venue_city, total_capacity, status, created_at
	           FROM events
	           WHERE slug = ?`
	return r.scanEvent(r.db.QueryRowContext(ctx, q, slug))
}

func (r *EventRepo) scanEvent(row *sql.Row) (*model.Event, error) {
	var e model.Event
	var description sql.NullString
	err := row.Scan(&e.ID, &e.Title, &e.Slug, &description, &e.StartDate, &e.EndDate,
		&e.VenueName, &e.VenueCity, &e.TotalCapacity, &e.Status, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	return &e, nil
}
