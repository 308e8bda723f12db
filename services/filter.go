package services

import (
	"strings"

	"flatwatch/models"
)

// categoryCodes maps the bot-facing category vocabulary to the codes the
// upstream actually stores. Unmapped values pass through unchanged.
var categoryCodes = map[string]string{
	"APARTMENT": "APPT",
}

// MapCategory translates a category into the upstream's internal code.
func MapCategory(category string) string {
	upper := strings.ToUpper(category)
	if code, ok := categoryCodes[upper]; ok {
		return code
	}
	return upper
}

// ApplyFilters runs every predicate of c over the raw batch and keeps the
// listings that pass all of them. The upstream cannot be trusted to have
// applied any of the query parameters it was sent, so everything is
// re-checked here.
//
// Region, offer type and category are hard filters: a listing missing the
// field is excluded. The numeric filters (rooms, price, surface) soft-pass:
// a listing whose field is absent or unparsable is kept, since the upstream
// omits numeric fields often enough that excluding them would discard good
// listings.
func ApplyFilters(listings []models.RawListing, c models.FilterCriteria) []models.RawListing {
	matched := make([]models.RawListing, 0, len(listings))
	for _, l := range listings {
		if matches(l, c) {
			matched = append(matched, l)
		}
	}
	return matched
}

func matches(l models.RawListing, c models.FilterCriteria) bool {
	// Region is never optional. Missing region excludes.
	state := l.String("state")
	if state == "" || !strings.EqualFold(state, c.Region) {
		return false
	}

	if c.City != "" {
		city := l.String("city")
		if city == "" || !strings.Contains(strings.ToLower(city), strings.ToLower(c.City)) {
			return false
		}
	}

	if c.MinRooms != nil || c.MaxRooms != nil {
		if rooms, ok := l.Number("number_of_rooms"); ok {
			if c.MinRooms != nil && rooms < *c.MinRooms {
				return false
			}
			if c.MaxRooms != nil && rooms > *c.MaxRooms {
				return false
			}
		}
	}

	if c.MaxPrice != nil {
		if price, ok := l.Number("price_display"); ok && price > float64(*c.MaxPrice) {
			return false
		}
	}

	if c.MinSurface != nil {
		if surface, ok := l.Number("livingspace"); ok && surface < float64(*c.MinSurface) {
			return false
		}
	}

	if c.OfferType != "" && !strings.EqualFold(l.String("offer_type"), c.OfferType) {
		return false
	}

	if c.Category != "" && l.String("object_category") != MapCategory(c.Category) {
		return false
	}

	return true
}
