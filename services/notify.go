package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"flatwatch/models"
	"flatwatch/storage"
)

// Sender is the chat delivery collaborator. It reports transport-level
// failures as errors and never panics; the notifier decides what a failure
// means for dedup state.
type Sender interface {
	Send(ctx context.Context, userID int64, l *models.Listing) error
}

// PhotoMirror receives the image URLs of delivered listings for background
// archival. Optional.
type PhotoMirror interface {
	Enqueue(urls ...string)
}

// Notifier runs the periodic check-and-notify cycle: evaluate all alerts,
// deliver fresh matches, and mark each listing as notified only after its
// delivery succeeded. A failed delivery is left unmarked so the next cycle
// retries it.
type Notifier struct {
	alerts *AlertService
	store  storage.Store
	sender Sender
	mirror PhotoMirror
}

func NewNotifier(alerts *AlertService, store storage.Store, sender Sender) *Notifier {
	return &Notifier{alerts: alerts, store: store, sender: sender}
}

// SetMirror attaches a photo mirror fed after successful deliveries.
func (n *Notifier) SetMirror(m PhotoMirror) {
	n.mirror = m
}

// RunCycle performs one full notification pass. Per-user and per-listing
// failures are logged and skipped; the cycle itself only fails when alert
// evaluation cannot run at all.
func (n *Notifier) RunCycle(ctx context.Context) error {
	runID := uuid.New().String()[:8]
	started := time.Now()
	log.Printf("Notify[%s]: cycle starting", runID)

	perUser, err := n.alerts.CheckAll(ctx)
	if err != nil {
		return err
	}

	var matched, sent, failed int
	for _, listings := range perUser {
		matched += len(listings)
	}
	if matched == 0 {
		log.Printf("Notify[%s]: no new listings for any user", runID)
		n.recordCycle(ctx, runID, started, 0, 0, 0)
		return nil
	}

	for userID, listings := range perUser {
		log.Printf("Notify[%s]: %d new listings for user %d", runID, len(listings), userID)

		for _, l := range listings {
			if err := n.sender.Send(ctx, userID, l); err != nil {
				log.Printf("Notify[%s]: delivery of pk %d to user %d failed: %v", runID, l.PK, userID, err)
				failed++
				continue
			}

			if err := n.store.MarkNotified(ctx, userID, l.PK); err != nil {
				// Delivered but unmarked: the user may see this listing
				// again next cycle. Preferable to marking undelivered ones.
				log.Printf("Notify[%s]: failed to mark pk %d for user %d: %v", runID, l.PK, userID, err)
			}
			sent++

			if n.mirror != nil && len(l.Images) > 0 {
				n.mirror.Enqueue(l.Images...)
			}
		}
	}

	log.Printf("Notify[%s]: cycle done: %d sent, %d failed in %s", runID, sent, failed, time.Since(started).Round(time.Millisecond))
	n.recordCycle(ctx, runID, started, matched, sent, failed)
	return nil
}

// recordCycle persists the cycle's bookkeeping row. Failure to record never
// fails the cycle.
func (n *Notifier) recordCycle(ctx context.Context, runID string, started time.Time, matched, sent, failed int) {
	run := models.CycleRun{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Matched:    matched,
		Sent:       sent,
		Failed:     failed,
	}
	if err := n.store.RecordCycle(ctx, &run); err != nil {
		log.Printf("Notify[%s]: failed to record cycle: %v", runID, err)
	}
}
