// Package sync contains the reconciliation core: given the events parsed
// from an ICS feed and the events already present on the remote calendar,
// it plans which remote events to create, update, skip or delete, and
// applies that plan through a Store.
package sync

import (
	"context"
	"sort"
	"time"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// Store is the remote calendar the reconciler works against.
type Store interface {
	// List returns every event in [min, max), recurring masters and
	// instance overrides alike, without expanding recurrences.
	List(ctx context.Context, min, max time.Time) ([]model.RemoteEvent, error)
	// Import creates an event preserving its iCalendar UID, so a later
	// List finds it under the same identity key.
	Import(ctx context.Context, ev model.Event) (model.RemoteEvent, error)
	// Update replaces the event with the given remote ID.
	Update(ctx context.Context, id string, ev model.Event) (model.RemoteEvent, error)
	// Delete removes an event. Deleting an already-gone event is not an
	// error.
	Delete(ctx context.Context, id string) error
}

// Skip and delete reasons, recorded in the plan for reporting.
const (
	ReasonRemoteNewer = "remote sequence is higher"
	ReasonUpToDate    = "same sequence"
	ReasonDuplicate   = "duplicate remote event for identity key"
	ReasonFringe      = "not present in ICS source"
)

type Update struct {
	RemoteID string
	Event    model.Event
}

type Skip struct {
	Key    model.Key
	Reason string
}

type Delete struct {
	RemoteID string
	Key      model.Key
	Reason   string
}

// Plan is the set of operations that reconciles the remote calendar with
// the incoming events. Applying a plan and planning again immediately
// yields an empty plan.
type Plan struct {
	Creates []model.Event
	Updates []Update
	Skips   []Skip
	Deletes []Delete
}

func (p *Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// Options controls planning.
type Options struct {
	// Prune deletes future remote events whose UID does not appear in the
	// incoming set. It is ignored when the incoming set is empty, so a
	// broken feed can never empty the calendar.
	Prune bool
	// SourceUIDs holds every UID present in the feed, including events a
	// sync window filtered out of the incoming set. Pruning never deletes
	// a UID the feed still carries.
	SourceUIDs map[string]bool
	// Now is the boundary for "future" when pruning. Zero means time.Now.
	Now time.Time
}

// BuildPlan diffs the incoming events against the remote ones.
//
// Rules, per identity key (UID, RecurrenceID):
//   - no remote event        -> create
//   - incoming sequence > remote -> update
//   - otherwise              -> skip (remote is newer or identical)
//
// Remote duplicates for one key keep the copy with the highest sequence;
// the rest are planned for deletion. With pruning on, future remote
// events whose UID is absent from the feed are planned for deletion.
func BuildPlan(incoming []model.Event, remote []model.RemoteEvent, opts Options) Plan {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var plan Plan

	winners, dupes := dedupeRemote(remote)
	for _, d := range dupes {
		plan.Deletes = append(plan.Deletes, Delete{RemoteID: d.ID, Key: d.Key(), Reason: ReasonDuplicate})
	}

	incomingByKey := dedupeIncoming(incoming)

	matchedUIDs := make(map[string]bool, len(incomingByKey))
	for _, ev := range incomingByKey {
		matchedUIDs[ev.UID] = true

		rem, ok := winners[ev.Key()]
		if !ok {
			plan.Creates = append(plan.Creates, ev)
			continue
		}
		switch {
		case ev.Sequence > rem.Sequence:
			plan.Updates = append(plan.Updates, Update{RemoteID: rem.ID, Event: ev})
		case rem.Sequence > ev.Sequence:
			plan.Skips = append(plan.Skips, Skip{Key: ev.Key(), Reason: ReasonRemoteNewer})
		default:
			plan.Skips = append(plan.Skips, Skip{Key: ev.Key(), Reason: ReasonUpToDate})
		}
	}

	if opts.Prune && len(incomingByKey) > 0 {
		for key, rem := range winners {
			if matchedUIDs[key.UID] || opts.SourceUIDs[key.UID] {
				continue
			}
			if !rem.End.After(now) {
				// Past events are left alone; only the upcoming calendar
				// is kept in lockstep with the feed.
				continue
			}
			plan.Deletes = append(plan.Deletes, Delete{RemoteID: rem.ID, Key: key, Reason: ReasonFringe})
		}
	}

	sortPlan(&plan)
	return plan
}

// sortPlan orders every operation list by identity key. Planning iterates
// maps, so without this the plan output and apply order would vary from
// run to run.
func sortPlan(p *Plan) {
	sort.Slice(p.Creates, func(i, j int) bool {
		return keyLess(p.Creates[i].Key(), p.Creates[j].Key())
	})
	sort.Slice(p.Updates, func(i, j int) bool {
		return keyLess(p.Updates[i].Event.Key(), p.Updates[j].Event.Key())
	})
	sort.Slice(p.Skips, func(i, j int) bool {
		return keyLess(p.Skips[i].Key, p.Skips[j].Key)
	})
	sort.Slice(p.Deletes, func(i, j int) bool {
		return keyLess(p.Deletes[i].Key, p.Deletes[j].Key)
	})
}

func keyLess(a, b model.Key) bool {
	if a.UID != b.UID {
		return a.UID < b.UID
	}
	return a.RecurrenceID < b.RecurrenceID
}

// dedupeRemote indexes remote events by identity key. When several remote
// events share a key (the invariant the reconciler restores), the one with
// the highest sequence wins and the others are returned as duplicates.
func dedupeRemote(remote []model.RemoteEvent) (map[model.Key]model.RemoteEvent, []model.RemoteEvent) {
	winners := make(map[model.Key]model.RemoteEvent, len(remote))
	var dupes []model.RemoteEvent

	for _, rem := range remote {
		cur, ok := winners[rem.Key()]
		if !ok {
			winners[rem.Key()] = rem
			continue
		}
		if rem.Sequence > cur.Sequence {
			winners[rem.Key()] = rem
			dupes = append(dupes, cur)
		} else {
			dupes = append(dupes, rem)
		}
	}
	return winners, dupes
}

// dedupeIncoming collapses incoming events sharing a key to the highest
// sequence. Feeds occasionally repeat a VEVENT; importing both would
// violate the one-remote-event-per-key invariant.
func dedupeIncoming(incoming []model.Event) map[model.Key]model.Event {
	byKey := make(map[model.Key]model.Event, len(incoming))
	for _, ev := range incoming {
		cur, ok := byKey[ev.Key()]
		if ok {
			appLog.Warn("duplicate event in ICS source", "uid", ev.UID, "recurrence_id", ev.RecurrenceID)
			if ev.Sequence <= cur.Sequence {
				continue
			}
		}
		byKey[ev.Key()] = ev
	}
	return byKey
}
