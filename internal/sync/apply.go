package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
)

// Summary is the outcome of applying a plan.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Imported is the number of events confirmed present on the remote
// calendar after the run: created, updated, or already up to date.
func (s Summary) Imported() int {
	return s.Created + s.Updated + s.Skipped
}

func (s Summary) String() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d deleted=%d failed=%d",
		s.Created, s.Updated, s.Skipped, s.Deleted, s.Failed)
}

// Apply executes a plan against the store. Failures on individual events
// are logged and counted; the rest of the plan still runs. The returned
// error aggregates the per-event failures.
func Apply(ctx context.Context, store Store, plan Plan) (Summary, error) {
	var sum Summary
	var errs []error

	for _, ev := range plan.Creates {
		res, err := store.Import(ctx, ev)
		if err != nil {
			appLog.Error("failed to create event", err, "uid", ev.UID, "summary", ev.Summary)
			sum.Failed++
			errs = append(errs, fmt.Errorf("create %s: %w", ev.UID, err))
			continue
		}
		appLog.Info("created event", "uid", ev.UID, "summary", ev.Summary)

		// The import endpoint occasionally drops fields; verify and issue
		// one corrective update if needed.
		if ok, field := Equivalent(ev, res.Event, false); !ok {
			appLog.Warn("created event differs from source, updating",
				"uid", ev.UID, "field", field)
			res, err = store.Update(ctx, res.ID, ev)
			if err != nil {
				appLog.Error("corrective update failed", err, "uid", ev.UID)
				sum.Failed++
				errs = append(errs, fmt.Errorf("correct %s: %w", ev.UID, err))
				continue
			}
			// Updating bumps the remote sequence, so ignore it here.
			if ok, field := Equivalent(ev, res.Event, true); !ok {
				appLog.Error("event still differs after corrective update",
					errors.New("verification failed"), "uid", ev.UID, "field", field)
			}
		}
		sum.Created++
	}

	for _, up := range plan.Updates {
		res, err := store.Update(ctx, up.RemoteID, up.Event)
		if err != nil {
			appLog.Error("failed to update event", err, "uid", up.Event.UID, "summary", up.Event.Summary)
			sum.Failed++
			errs = append(errs, fmt.Errorf("update %s: %w", up.Event.UID, err))
			continue
		}
		if ok, field := Equivalent(up.Event, res.Event, true); !ok {
			appLog.Warn("event did not update correctly", "uid", up.Event.UID, "field", field)
		} else {
			appLog.Info("updated event", "uid", up.Event.UID, "summary", up.Event.Summary)
		}
		sum.Updated++
	}

	for _, sk := range plan.Skips {
		appLog.Debug("skipping event", "uid", sk.Key.UID, "reason", sk.Reason)
		sum.Skipped++
	}

	for _, del := range plan.Deletes {
		if err := store.Delete(ctx, del.RemoteID); err != nil {
			appLog.Error("failed to delete event", err, "uid", del.Key.UID, "remote_id", del.RemoteID)
			sum.Failed++
			errs = append(errs, fmt.Errorf("delete %s: %w", del.Key.UID, err))
			continue
		}
		appLog.Info("deleted event", "uid", del.Key.UID, "reason", del.Reason)
		sum.Deleted++
	}

	return sum, errors.Join(errs...)
}

// Clear deletes every event on the calendar and returns how many were
// removed. Events already gone do not count as failures; the store's
// Delete is tolerant of 410 Gone.
func Clear(ctx context.Context, store Store) (int, error) {
	remote, err := store.List(ctx, ListMin, ListMax)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}

	deleted := 0
	var errs []error
	for _, rem := range remote {
		if err := store.Delete(ctx, rem.ID); err != nil {
			appLog.Error("failed to delete event", err, "uid", rem.UID, "remote_id", rem.ID)
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// ListMin and ListMax bound unwindowed listings. The remote side keys
// reconciliation by identity, not time, so the whole calendar is in
// scope.
var (
	ListMin = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	ListMax = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
)
