// Package reservation implements the ticket reservation engine: temporary,
// expiring claims on limited per-tier ticket pools, admitted under a
// per-event distributed lock so a tier is never oversold even when many
// buyers check out concurrently.
package reservation

import "github.com/aurelia-events/ticketing/internal/model"

// TierRequest is one (tier, quantity) pair in a reservation request. A
// batch may reference the same tier more than once; admission always
// validates the summed demand per tier.
type TierRequest struct {
	TierIndex int `json:"tier_index"`
	Quantity  int `json:"quantity"`
}

// TierValidation records, for one requested tier, the durable remaining
// count observed at validation time.
type TierValidation struct {
	TierIndex int
	Remaining int
}

// TierAvailability pairs a tier's durable remaining count with the sum of
// quantities currently held for it across all active holds. The true
// available-to-reserve count is Remaining - Reserved.
type TierAvailability struct {
	Remaining int
	Reserved  int
}

// The functions below are deliberately side-effect free so admission logic
// can be unit-tested with literal fixtures, independent of any store.

// ValidateTiersAndCapacities checks each requested tier against the durable
// tier snapshot. It fails with TierNotFoundError when an index is out of
// range and with CapacityExceededError when a single request exceeds the
// tier's durable remaining in isolation. This is the cheap early rejection
// performed before acquiring any lock.
func ValidateTiersAndCapacities(requests []TierRequest, tiers []model.TicketTier) ([]TierValidation, error) {
	validations := make([]TierValidation, 0, len(requests))
	for _, req := range requests {
		if req.TierIndex < 0 || req.TierIndex >= len(tiers) {
			return nil, &TierNotFoundError{TierIndex: req.TierIndex}
		}
		tier := tiers[req.TierIndex]
		if req.Quantity > tier.Remaining {
			return nil, &CapacityExceededError{
				TierIndex: req.TierIndex,
				Requested: req.Quantity,
				Remaining: tier.Remaining,
			}
		}
		validations = append(validations, TierValidation{TierIndex: req.TierIndex, Remaining: tier.Remaining})
	}
	return validations, nil
}

// CalculateTierAvailability combines the just-re-read durable remaining
// counts with the sum of quantities held for each validated tier across all
// currently-active holds.
func CalculateTierAvailability(validations []TierValidation, freshRemaining []int, activeHolds []Hold) map[int]TierAvailability {
	reserved := ReservedByTier(activeHolds)
	availability := make(map[int]TierAvailability, len(validations))
	for i, v := range validations {
		if i >= len(freshRemaining) {
			continue
		}
		availability[v.TierIndex] = TierAvailability{
			Remaining: freshRemaining[i],
			Reserved:  reserved[v.TierIndex],
		}
	}
	return availability
}

// ReservedByTier sums held quantities per tier across the given holds.
func ReservedByTier(holds []Hold) map[int]int {
	reserved := make(map[int]int)
	for _, hold := range holds {
		for _, entry := range hold.Entries {
			reserved[entry.TierIndex] += entry.Quantity
		}
	}
	return reserved
}

// GroupReservationsByTier collapses a batch request that may reference the
// same tier more than once into summed per-tier demand.
func GroupReservationsByTier(requests []TierRequest) map[int]int {
	byTier := make(map[int]int, len(requests))
	for _, req := range requests {
		byTier[req.TierIndex] += req.Quantity
	}
	return byTier
}

// ValidateAvailability is the authoritative admission check, run only while
// holding the event lock. It fails with InsufficientAvailabilityError on
// the first tier whose summed demand exceeds remaining - reserved.
func ValidateAvailability(requestedByTier map[int]int, availability map[int]TierAvailability) error {
	for tierIndex, requested := range requestedByTier {
		avail, ok := availability[tierIndex]
		if !ok {
			return &TierNotFoundError{TierIndex: tierIndex}
		}
		available := avail.Remaining - avail.Reserved
		if requested > available {
			return &InsufficientAvailabilityError{
				TierIndex: tierIndex,
				Available: available,
				Requested: requested,
			}
		}
	}
	return nil
}
