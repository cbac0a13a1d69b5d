package sync

import (
	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// Equivalent reports whether two events describe the same calendar entry.
// It returns the first differing field name for logging. An empty string
// and an unset value compare equal, matching how the Calendar API rounds
// trips empty fields. Sequence is compared unless ignoreSequence is set;
// the API bumps the sequence on update, so post-update verification must
// ignore it.
func Equivalent(a, b model.Event, ignoreSequence bool) (bool, string) {
	if a.Summary != b.Summary {
		return false, "summary"
	}
	if a.Description != b.Description {
		return false, "description"
	}
	if a.Location != b.Location {
		return false, "location"
	}
	if !sameInstant(a, b, true) {
		return false, "start"
	}
	if !sameInstant(a, b, false) {
		return false, "end"
	}
	if normalizeStatus(a.Status) != normalizeStatus(b.Status) {
		return false, "status"
	}
	if !ignoreSequence && a.Sequence != b.Sequence {
		return false, "sequence"
	}
	return true, ""
}

func sameInstant(a, b model.Event, start bool) bool {
	at, bt := a.Start, b.Start
	if !start {
		at, bt = a.End, b.End
	}
	if a.AllDay || b.AllDay {
		// All-day bounds are dates; the zone the adapter attached to the
		// midnight instant is irrelevant.
		ay, am, ad := at.Date()
		by, bm, bd := bt.Date()
		return ay == by && am == bm && ad == bd
	}
	return at.Equal(bt)
}

func normalizeStatus(s string) string {
	if s == "" {
		return model.StatusConfirmed
	}
	return s
}
