package ics

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// maxOccurrenceScan caps how many occurrences are walked per rule, so a
// pathological RRULE (e.g. secondly with no UNTIL) cannot stall a run.
const maxOccurrenceScan = 5000

// Window is a half-open [Start, End) time range used to limit a sync to
// events that actually occur within it.
type Window struct {
	Start time.Time
	End   time.Time
}

// Zero reports whether the window is unset, meaning no filtering.
func (w Window) Zero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// FilterWindow returns the events that have at least one occurrence
// intersecting the window. Recurring masters are kept when any expanded
// occurrence lands inside it; plain events when their own span
// intersects. An override follows its master: once the master is synced,
// dropping the override would resurrect the original instance data on
// the remote side. With a zero window all events pass through.
func FilterWindow(events []model.Event, w Window) []model.Event {
	if w.Zero() {
		return events
	}

	kept := make([]model.Event, 0, len(events))
	keptUIDs := make(map[string]bool)

	for _, ev := range events {
		if ev.RecurrenceID != "" {
			continue
		}
		in := false
		if ev.Recurring() {
			in = OccursWithin(ev, w)
		} else {
			in = overlaps(ev.Start, ev.End, w)
		}
		if in {
			kept = append(kept, ev)
			keptUIDs[ev.UID] = true
		}
	}

	for _, ev := range events {
		if ev.RecurrenceID == "" {
			continue
		}
		if keptUIDs[ev.UID] || overlaps(ev.Start, ev.End, w) {
			kept = append(kept, ev)
		}
	}
	return kept
}

// OccursWithin expands a recurring event's rule and reports whether any
// occurrence intersects the window. Expansion is capped; hitting the cap
// keeps the event rather than risking a false drop.
func OccursWithin(ev model.Event, w Window) bool {
	rawRule := ""
	var exdates []time.Time
	for _, line := range ev.Recurrence {
		switch {
		case strings.HasPrefix(line, "RRULE:"):
			rawRule = strings.TrimPrefix(line, "RRULE:")
		case strings.HasPrefix(line, "EXDATE:"):
			for _, part := range strings.Split(strings.TrimPrefix(line, "EXDATE:"), ",") {
				if t, err := parseTimeValue(strings.TrimSpace(part), ev.Start.Location()); err == nil {
					exdates = append(exdates, t)
				}
			}
		}
	}
	if rawRule == "" {
		return overlaps(ev.Start, ev.End, w)
	}

	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		appLog.Warn("unparseable RRULE, keeping event", "uid", ev.UID, "rrule", rawRule, "err", err)
		return true
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Shift the range start back by the event duration so an occurrence
	// that starts before the window but runs into it still counts.
	dur := ev.End.Sub(ev.Start)
	rangeStart := w.Start.Add(-dur).In(ev.Start.Location())
	rangeEnd := w.End.In(ev.Start.Location())

	// Walk occurrences in order and stop at the first answer, so dense
	// rules never materialize the range.
	next := set.Iterator()
	for i := 0; i < maxOccurrenceScan; i++ {
		t, ok := next()
		if !ok {
			return false
		}
		if !t.Before(rangeEnd) {
			return false
		}
		if !t.Before(rangeStart) {
			return true
		}
	}
	// Cap reached with every occurrence still before the window. Keep the
	// event rather than risk a false drop.
	return true
}

func overlaps(start, end time.Time, w Window) bool {
	return end.After(w.Start) && start.Before(w.End)
}

func parseTimeValue(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
