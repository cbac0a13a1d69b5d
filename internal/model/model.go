package model

import (
	"time"

	"github.com/google/uuid"
)

// Event statuses as they appear in ICS STATUS properties, lowercased.
// Google Calendar uses the same vocabulary.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// Key identifies an event on either side of a sync. For a recurring event
// the master and each overridden instance share a UID; the RecurrenceID
// (RECURRENCE-ID on the ICS side, originalStartTime on the Google side)
// tells them apart.
type Key struct {
	UID          string
	RecurrenceID string
}

// Event is the normalized representation of a calendar event, independent
// of whether it came from an ICS feed or from the remote calendar.
type Event struct {
	UID          string
	RecurrenceID string // empty for masters and plain events

	// Sequence is the iCalendar revision number. Higher wins.
	Sequence int

	Summary     string
	Description string
	Location    string
	Status      string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Recurrence holds the raw recurrence lines ("RRULE:...") for master
	// events. Instance overrides never carry one.
	Recurrence []string
}

// RemoteEvent is an Event that exists on the target calendar and therefore
// has a service-assigned identifier.
type RemoteEvent struct {
	Event
	ID string
}

func (e *Event) Key() Key {
	return Key{UID: e.UID, RecurrenceID: e.RecurrenceID}
}

func (e *Event) Recurring() bool {
	return len(e.Recurrence) > 0
}

// FormatRecurrenceID renders an instance's original start as the
// RecurrenceID both adapters key by. Timed instances normalize to UTC so
// an ICS RECURRENCE-ID and a Google originalStartTime compare equal
// regardless of the zone each side reports.
func FormatRecurrenceID(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.UTC().Format(time.RFC3339)
}

// uidNamespace scopes synthetic UIDs generated for VEVENTs that lack one.
var uidNamespace = uuid.MustParse("5f8d2a60-1b7e-4c3a-9f14-7d0b8a2e6c41")

// SyntheticUID derives a stable UID from an event's summary and start time.
// Feeds that omit UIDs must still map to the same identity key on every
// run, otherwise each sync would re-create every event.
func SyntheticUID(summary string, start time.Time) string {
	seed := summary + "|" + start.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uidNamespace, []byte(seed)).String() + "@gcal-import-ics"
}
