package services

import (
	"context"
	"fmt"
	"log"

	"flatwatch/models"
)

// Page is one slice of a filtered result set.
type Page struct {
	Count   int // total filtered size, not the slice size
	Items   []models.RawListing
	HasNext bool
	HasPrev bool
}

// Paginate slices an already-filtered sequence. It never re-fetches or
// re-filters; the caller runs the filter engine once per request against the
// cache snapshot current at that moment.
func Paginate(filtered []models.RawListing, offset, limit int) Page {
	count := len(filtered)
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	end := offset + limit
	if offset > count {
		offset = count
	}
	if end > count {
		end = count
	}

	return Page{
		Count:   count,
		Items:   filtered[offset:end],
		HasNext: offset+limit < count,
		HasPrev: offset > 0,
	}
}

// SearchService serves interactive filter/search requests from the bulk
// cache.
type SearchService struct {
	cache  *BulkCache
	region string
}

func NewSearchService(cache *BulkCache, region string) *SearchService {
	return &SearchService{cache: cache, region: region}
}

// Search filters the cached batch with the given criteria and returns one
// page. The region constraint is forced from configuration regardless of
// what the criteria carry. When the underlying fetch failed outright the
// error is returned alongside an empty page, so callers can log the
// difference even if they present it as "no results".
func (s *SearchService) Search(ctx context.Context, criteria models.FilterCriteria, offset, limit int) (Page, error) {
	criteria.Region = s.region

	listings, err := s.cache.Get(ctx)
	if err != nil {
		log.Printf("Search: bulk fetch failed, serving empty result: %v", err)
		return Page{}, fmt.Errorf("search: %w", err)
	}

	filtered := ApplyFilters(listings, criteria)
	return Paginate(filtered, offset, limit), nil
}

// NormalizePage converts a page of raw listings for presentation. Records
// without a pk are dropped here, at the boundary, never earlier.
func NormalizePage(p Page) []*models.Listing {
	items := make([]*models.Listing, 0, len(p.Items))
	for _, raw := range p.Items {
		l, err := models.Normalize(raw)
		if err != nil {
			log.Printf("Search: skipping unidentifiable listing: %v", err)
			continue
		}
		items = append(items, l)
	}
	return items
}
