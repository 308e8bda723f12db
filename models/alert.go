package models

import (
	"time"
)

// FilterCriteria is the set of optional predicates a search or alert runs
// with. A nil/empty field means no constraint on that dimension. Region is
// the exception: it is always applied and is filled in by the service layer
// from configuration, never by user input.
type FilterCriteria struct {
	Region     string   `json:"region" db:"region"`
	City       string   `json:"city" db:"city"`
	MinRooms   *float64 `json:"min_rooms" db:"min_rooms"`
	MaxRooms   *float64 `json:"max_rooms" db:"max_rooms"`
	MaxPrice   *int     `json:"max_price" db:"max_price"`
	MinSurface *int     `json:"min_surface" db:"min_surface"`
	OfferType  string   `json:"offer_type" db:"offer_type"`    // RENT or SALE
	Category   string   `json:"category" db:"object_category"` // APARTMENT, HOUSE, ...
}

// IsEmpty reports whether no user-settable predicate is active.
func (c FilterCriteria) IsEmpty() bool {
	return c.City == "" && c.MinRooms == nil && c.MaxRooms == nil &&
		c.MaxPrice == nil && c.MinSurface == nil && c.OfferType == "" && c.Category == ""
}

// Alert is a persisted FilterCriteria owned by a user.
type Alert struct {
	ID        int64 `json:"id" db:"id"`
	UserID    int64 `json:"user_id" db:"user_id"`
	Criteria  FilterCriteria
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotifiedProperty marks a (user, listing) pair as already delivered.
// Inserting an existing pair is a no-op, never an error.
type NotifiedProperty struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	ListingPK  int64     `json:"listing_pk" db:"listing_pk"`
	NotifiedAt time.Time `json:"notified_at" db:"notified_at"`
}

// CycleRun is the bookkeeping record of one notification cycle.
type CycleRun struct {
	ID         int64     `json:"id" db:"id"`
	RunID      string    `json:"run_id" db:"run_id"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Matched    int       `json:"matched" db:"matched"`
	Sent       int       `json:"sent" db:"sent"`
	Failed     int       `json:"failed" db:"failed"`
}

// User is a chat user of the bot.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"first_name" db:"first_name"`
	Language  string    `json:"language" db:"language"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
