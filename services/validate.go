package services

import (
	"fmt"

	"flatwatch/models"
)

const (
	maxRoomsAllowed   = 20
	maxPriceAllowed   = 50_000_000
	maxSurfaceAllowed = 10_000
)

// ValidateCriteria sanity-checks user-entered filter values before they are
// persisted as an alert. A criteria set with no predicate at all is rejected:
// it would match every recent listing and flood the owner each cycle.
func ValidateCriteria(c models.FilterCriteria) error {
	if c.IsEmpty() {
		return fmt.Errorf("at least one filter is required")
	}
	if c.MinRooms != nil && c.MaxRooms != nil && *c.MinRooms > *c.MaxRooms {
		return fmt.Errorf("minimum rooms cannot exceed maximum rooms")
	}
	if c.MinRooms != nil && (*c.MinRooms <= 0 || *c.MinRooms > maxRoomsAllowed) {
		return fmt.Errorf("minimum rooms must be between 0 and %d", maxRoomsAllowed)
	}
	if c.MaxRooms != nil && (*c.MaxRooms <= 0 || *c.MaxRooms > maxRoomsAllowed) {
		return fmt.Errorf("maximum rooms must be between 0 and %d", maxRoomsAllowed)
	}
	if c.MaxPrice != nil && (*c.MaxPrice <= 0 || *c.MaxPrice > maxPriceAllowed) {
		return fmt.Errorf("maximum price must be between 0 and %d CHF", maxPriceAllowed)
	}
	if c.MinSurface != nil && (*c.MinSurface <= 0 || *c.MinSurface > maxSurfaceAllowed) {
		return fmt.Errorf("minimum surface must be between 0 and %d m²", maxSurfaceAllowed)
	}
	if c.OfferType != "" && c.OfferType != "RENT" && c.OfferType != "SALE" {
		return fmt.Errorf("offer type must be RENT or SALE")
	}
	return nil
}
