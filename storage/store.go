package storage

import (
	"context"

	"flatwatch/models"
)

// Store is the persistence collaborator: user/alert CRUD plus the dedup
// tracker. Implementations serialize their own writes; callers treat every
// operation as an atomic request/response.
type Store interface {
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)

	CreateAlert(ctx context.Context, a *models.Alert) error
	GetActiveAlerts(ctx context.Context) ([]models.Alert, error)
	GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]models.Alert, error)
	SetAlertActive(ctx context.Context, alertID, userID int64, active bool) error
	DeleteAlert(ctx context.Context, alertID, userID int64) error

	// IsNotified and MarkNotified implement the dedup tracker.
	// MarkNotified is idempotent: marking an existing pair is a no-op.
	IsNotified(ctx context.Context, userID, listingPK int64) (bool, error)
	MarkNotified(ctx context.Context, userID, listingPK int64) error
	CountNotified(ctx context.Context, userID int64) (int, error)

	RecordCycle(ctx context.Context, run *models.CycleRun) error
	GetRecentCycles(ctx context.Context, limit int) ([]models.CycleRun, error)

	Close() error
}
