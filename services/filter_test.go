package services

import (
	"testing"

	"flatwatch/models"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func rawListing(pk int64, fields map[string]any) models.RawListing {
	r := models.RawListing{"pk": pk}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func TestMapCategory(t *testing.T) {
	if got := MapCategory("APARTMENT"); got != "APPT" {
		t.Fatalf("expected APARTMENT -> APPT, got %s", got)
	}
	if got := MapCategory("apartment"); got != "APPT" {
		t.Fatalf("expected case-insensitive mapping, got %s", got)
	}
	if got := MapCategory("HOUSE"); got != "HOUSE" {
		t.Fatalf("expected unmapped value to pass through, got %s", got)
	}
	if got := MapCategory("house"); got != "HOUSE" {
		t.Fatalf("expected unmapped value uppercased, got %s", got)
	}
}

func TestFilter_RegionIsNeverOptional(t *testing.T) {
	listings := []models.RawListing{
		rawListing(1, map[string]any{"state": "TI"}),
		rawListing(2, map[string]any{"state": "ZH"}),
		rawListing(3, map[string]any{}), // no region at all
		rawListing(4, map[string]any{"state": "ti"}),
	}

	got := ApplyFilters(listings, models.FilterCriteria{Region: "TI"})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	for _, l := range got {
		pk, _ := l.PK()
		if pk != 1 && pk != 4 {
			t.Fatalf("unexpected pk %d in result", pk)
		}
	}
}

func TestFilter_CitySubstring(t *testing.T) {
	listings := []models.RawListing{
		rawListing(1, map[string]any{"state": "TI", "city": "Lugano"}),
		rawListing(2, map[string]any{"state": "TI", "city": "Lugano-Paradiso"}),
		rawListing(3, map[string]any{"state": "TI", "city": "Bellinzona"}),
		rawListing(4, map[string]any{"state": "TI"}), // no city
	}

	got := ApplyFilters(listings, models.FilterCriteria{Region: "TI", City: "lugano"})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestFilter_NumericSoftPass(t *testing.T) {
	listings := []models.RawListing{
		rawListing(1, map[string]any{"state": "TI", "number_of_rooms": 3.5, "price_display": 1800.0}),
		rawListing(2, map[string]any{"state": "TI"}), // no numerics at all
		rawListing(3, map[string]any{"state": "TI", "number_of_rooms": 1.0}),
		rawListing(4, map[string]any{"state": "TI", "price_display": 5000.0}),
		rawListing(5, map[string]any{"state": "TI", "number_of_rooms": "junk"}),
	}

	c := models.FilterCriteria{
		Region:   "TI",
		MinRooms: fptr(2),
		MaxPrice: iptr(2000),
	}

	got := ApplyFilters(listings, c)
	want := map[int64]bool{1: true, 2: true, 5: true}
	if len(got) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(got))
	}
	for _, l := range got {
		pk, _ := l.PK()
		if !want[pk] {
			t.Fatalf("unexpected pk %d in result", pk)
		}
	}
}

func TestFilter_BoundariesAreInclusive(t *testing.T) {
	listings := []models.RawListing{
		rawListing(1, map[string]any{"state": "TI", "number_of_rooms": 2.0, "price_display": 2000.0, "livingspace": 80.0}),
	}

	c := models.FilterCriteria{
		Region:     "TI",
		MinRooms:   fptr(2),
		MaxRooms:   fptr(2),
		MaxPrice:   iptr(2000),
		MinSurface: iptr(80),
	}

	if got := ApplyFilters(listings, c); len(got) != 1 {
		t.Fatalf("boundary values must pass, got %d matches", len(got))
	}
}

func TestFilter_OfferTypeAndCategoryAreHard(t *testing.T) {
	listings := []models.RawListing{
		rawListing(1, map[string]any{"state": "TI", "offer_type": "RENT", "object_category": "APPT"}),
		rawListing(2, map[string]any{"state": "TI", "offer_type": "SALE", "object_category": "APPT"}),
		rawListing(3, map[string]any{"state": "TI", "offer_type": "RENT", "object_category": "HOUSE"}),
		rawListing(4, map[string]any{"state": "TI", "offer_type": "RENT"}), // no category
	}

	c := models.FilterCriteria{Region: "TI", OfferType: "RENT", Category: "APARTMENT"}
	got := ApplyFilters(listings, c)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if pk, _ := got[0].PK(); pk != 1 {
		t.Fatalf("expected pk 1, got %d", pk)
	}
}

func TestFilter_CombinedScenario(t *testing.T) {
	listings := []models.RawListing{
		rawListing(1, map[string]any{"state": "TI", "number_of_rooms": 3.0, "price_display": 2000.0}),
		rawListing(2, map[string]any{"state": "ZH", "number_of_rooms": 3.0, "price_display": 2000.0}),
		rawListing(3, map[string]any{"state": "TI", "price_display": 5000.0}),
	}

	c := models.FilterCriteria{Region: "TI", MinRooms: fptr(2), MaxPrice: iptr(2500)}
	got := ApplyFilters(listings, c)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if pk, _ := got[0].PK(); pk != 1 {
		t.Fatalf("expected pk 1, got %d", pk)
	}
}

func TestFilter_PreservesUpstreamOrder(t *testing.T) {
	listings := []models.RawListing{
		rawListing(30, map[string]any{"state": "TI"}),
		rawListing(10, map[string]any{"state": "TI"}),
		rawListing(20, map[string]any{"state": "TI"}),
	}

	got := ApplyFilters(listings, models.FilterCriteria{Region: "TI"})
	var pks []int64
	for _, l := range got {
		pk, _ := l.PK()
		pks = append(pks, pk)
	}
	if len(pks) != 3 || pks[0] != 30 || pks[1] != 10 || pks[2] != 20 {
		t.Fatalf("expected upstream order preserved, got %v", pks)
	}
}
