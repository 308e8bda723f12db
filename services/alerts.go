package services

import (
	"context"
	"fmt"
	"log"

	"flatwatch/models"
	"flatwatch/storage"
)

// AlertService evaluates stored alerts against the most recent slice of the
// bulk cache and subtracts listings the owner has already been notified
// about. It never marks anything as notified itself: that is the delivery
// caller's job, after delivery actually succeeded.
type AlertService struct {
	cache       *BulkCache
	store       storage.Store
	region      string
	recentLimit int
}

func NewAlertService(cache *BulkCache, store storage.Store, region string, recentLimit int) *AlertService {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &AlertService{
		cache:       cache,
		store:       store,
		region:      region,
		recentLimit: recentLimit,
	}
}

// Evaluate returns the alert's never-notified matches among the most recent
// listings, in upstream (newest-first) order.
func (s *AlertService) Evaluate(ctx context.Context, alert models.Alert) ([]*models.Listing, error) {
	recent, err := s.cache.Recent(ctx, s.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("alert %d: %w", alert.ID, err)
	}

	criteria := alert.Criteria
	criteria.Region = s.region
	matched := ApplyFilters(recent, criteria)

	var fresh []*models.Listing
	for _, raw := range matched {
		pk, ok := raw.PK()
		if !ok {
			continue
		}

		notified, err := s.store.IsNotified(ctx, alert.UserID, pk)
		if err != nil {
			return nil, fmt.Errorf("alert %d: dedup lookup for pk %d: %w", alert.ID, pk, err)
		}
		if notified {
			continue
		}

		l, err := models.Normalize(raw)
		if err != nil {
			continue
		}
		fresh = append(fresh, l)
	}

	return fresh, nil
}

// CheckAll evaluates every active alert and merges the results per user,
// dropping duplicate pks that matched more than one of a user's alerts. A
// failing alert is logged and skipped; it never aborts the cycle.
func (s *AlertService) CheckAll(ctx context.Context) (map[int64][]*models.Listing, error) {
	alerts, err := s.store.GetActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}

	perUser := make(map[int64][]*models.Listing)
	seen := make(map[int64]map[int64]bool) // user -> pk

	for _, alert := range alerts {
		fresh, err := s.Evaluate(ctx, alert)
		if err != nil {
			log.Printf("Alerts: evaluation failed for alert %d (user %d): %v", alert.ID, alert.UserID, err)
			continue
		}
		if len(fresh) == 0 {
			continue
		}

		if seen[alert.UserID] == nil {
			seen[alert.UserID] = make(map[int64]bool)
		}
		for _, l := range fresh {
			if seen[alert.UserID][l.PK] {
				continue
			}
			seen[alert.UserID][l.PK] = true
			perUser[alert.UserID] = append(perUser[alert.UserID], l)
		}
	}

	return perUser, nil
}
