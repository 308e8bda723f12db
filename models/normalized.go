package models

import (
	"fmt"
	"strings"
)

// Listing is the validated projection of a RawListing used by the delivery
// and presentation layers. Only the pk is required; every other field
// degrades to its zero value when the raw record omits or mangles it.
type Listing struct {
	PK               int64
	OfferType        string
	ObjectCategory   string
	ObjectType       string
	Price            *float64
	PriceUnit        string
	Rooms            *float64
	LivingSpace      *float64
	Street           string
	StreetNumber     string
	Zipcode          string
	City             string
	State            string
	Description      string
	AvailabilityDate string
	Images           []string
	AgencyName       string
	AgencyPhone      string
	AgencyEmail      string
}

// Normalize converts a raw record into a Listing. It fails only when the
// record has no usable pk.
func Normalize(r RawListing) (*Listing, error) {
	pk, ok := r.PK()
	if !ok {
		return nil, fmt.Errorf("raw listing has no pk")
	}

	l := &Listing{
		PK:               pk,
		OfferType:        r.String("offer_type"),
		ObjectCategory:   r.String("object_category"),
		ObjectType:       r.String("object_type"),
		PriceUnit:        r.String("price_unit"),
		Street:           r.String("street"),
		StreetNumber:     r.String("street_number"),
		Zipcode:          r.String("zipcode"),
		City:             r.String("city"),
		State:            r.String("state"),
		Description:      r.String("description"),
		AvailabilityDate: r.String("availability_date"),
		Images:           r.Images(),
	}

	if price, ok := r.Number("price_display"); ok {
		l.Price = &price
	}
	if rooms, ok := r.Number("number_of_rooms"); ok {
		l.Rooms = &rooms
	}
	if space, ok := r.Number("livingspace"); ok {
		l.LivingSpace = &space
	}

	if agency := r.Object("agency"); agency != nil {
		l.AgencyName = agency.String("name")
	}
	if contact := r.Object("contact"); contact != nil {
		l.AgencyPhone = contact.String("phone")
		l.AgencyEmail = contact.String("email")
	}

	return l, nil
}

// FullAddress returns "street number, zip city" with missing parts dropped.
func (l *Listing) FullAddress() string {
	var parts []string
	if l.Street != "" {
		street := l.Street
		if l.StreetNumber != "" {
			street += " " + l.StreetNumber
		}
		parts = append(parts, street)
	}
	if l.Zipcode != "" && l.City != "" {
		parts = append(parts, l.Zipcode+" "+l.City)
	} else if l.City != "" {
		parts = append(parts, l.City)
	}
	if len(parts) == 0 {
		return "Address not available"
	}
	return strings.Join(parts, ", ")
}

// FormattedPrice renders the price Swiss-style (CHF 1'850 / month).
func (l *Listing) FormattedPrice() string {
	if l.Price == nil {
		return "Price on request"
	}
	price := "CHF " + swissNumber(int64(*l.Price))
	switch l.PriceUnit {
	case "monthly":
		return price + " / month"
	case "once", "":
		return price
	default:
		return price + " / " + l.PriceUnit
	}
}

// FormattedRooms renders the room count, keeping half rooms.
func (l *Listing) FormattedRooms() string {
	if l.Rooms == nil {
		return "Not specified"
	}
	if *l.Rooms == float64(int64(*l.Rooms)) {
		return fmt.Sprintf("%d rooms", int64(*l.Rooms))
	}
	return fmt.Sprintf("%.1f rooms", *l.Rooms)
}

// FormattedSurface renders the living space in m².
func (l *Listing) FormattedSurface() string {
	if l.LivingSpace == nil {
		return "Not specified"
	}
	return fmt.Sprintf("%d m²", int64(*l.LivingSpace))
}

// swissNumber formats n with apostrophe thousand separators (1'234'567).
func swissNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('\'')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
