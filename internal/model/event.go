package model

import "time"

// Event represents a ticketed event as stored in the events table. Only
// published events are visible to buyers.
//
// Fields:
//  ID            – primary key (UUID).
//  Title         – display title.
//  Slug          – URL-safe identifier used by the public detail endpoint.
//  Description   – optional long-form description.
//  StartDate     – when the event begins.
//  EndDate       – when the event ends.
//  VenueName     – venue display name.
//  VenueCity     – venue city.
//  TotalCapacity – sum of all tier capacities.
//  Status        – lifecycle status (draft, published, cancelled, completed).
//  CreatedAt     – timestamp when the record was created.
type Event struct {
	ID            string    // events.id
	Title         string    // events.title
	Slug          string    // events.slug
	Description   string    // events.description
	StartDate     time.Time // events.start_date
	EndDate       time.Time // events.end_date
	VenueName     string    // events.venue_name
	VenueCity     string    // events.venue_city
	TotalCapacity int       // events.total_capacity
	Status        string    // events.status
	CreatedAt     time.Time // events.created_at
}

// TicketTier is one price category within an event. Remaining is computed
// at read time as capacity minus permanently sold tickets; it does not
// account for in-flight holds, which live in the ephemeral store.
type TicketTier struct {
	TierIndex  int    // ordinal position within the event, stable across reads
	Name       string // display name, e.g. "General Admission"
	PriceCents uint32 // price in cents
	Capacity   int    // total tickets this tier may ever sell
	Remaining  int    // capacity - sold, as of the last durable read
}
