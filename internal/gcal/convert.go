package gcal

import (
	"errors"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/pschmitt/gcal-import-ics/internal/model"
)

const dateLayout = "2006-01-02"

// toGoogleEvent maps a normalized event onto the Calendar API shape.
// All-day events use date-only bounds (end date exclusive per RFC 5545);
// timed events use RFC 3339 with the event's own zone.
func toGoogleEvent(ev model.Event) *calendar.Event {
	out := &calendar.Event{
		ICalUID:     ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		Sequence:    int64(ev.Sequence),
		Start:       toEventDateTime(ev.Start, ev.AllDay),
		End:         toEventDateTime(ev.End, ev.AllDay),
	}
	if len(ev.Recurrence) > 0 {
		out.Recurrence = ev.Recurrence
	}
	if ev.RecurrenceID != "" {
		out.OriginalStartTime = recurrenceIDToDateTime(ev.RecurrenceID, ev.AllDay)
	}
	// The Sequence zero value must survive serialization, otherwise a
	// remote event at sequence 0 round-trips as unset.
	out.ForceSendFields = append(out.ForceSendFields, "Sequence")
	return out
}

func toEventDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format(dateLayout)}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

func recurrenceIDToDateTime(rid string, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: rid}
	}
	return &calendar.EventDateTime{DateTime: rid}
}

// fromGoogleEvent maps a Calendar API event back into the normalized
// model. Instance overrides carry their originalStartTime as the
// RecurrenceID half of the identity key.
func fromGoogleEvent(item *calendar.Event) (model.RemoteEvent, error) {
	if item == nil {
		return model.RemoteEvent{}, errors.New("nil event")
	}

	uid := item.ICalUID
	if uid == "" {
		// Events created by hand in the UI always have one; defensive
		// fallback for API oddities.
		uid = item.Id
	}

	rem := model.RemoteEvent{
		ID: item.Id,
		Event: model.Event{
			UID:         uid,
			Sequence:    int(item.Sequence),
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Status:      item.Status,
			Recurrence:  item.Recurrence,
		},
	}

	start, allDay, err := fromEventDateTime(item.Start)
	if err != nil {
		return model.RemoteEvent{}, err
	}
	end, _, err := fromEventDateTime(item.End)
	if err != nil {
		return model.RemoteEvent{}, err
	}
	rem.Start = start
	rem.End = end
	rem.AllDay = allDay

	if ost := item.OriginalStartTime; ost != nil {
		if ost.Date != "" {
			rem.RecurrenceID = ost.Date
		} else if ost.DateTime != "" {
			t, perr := time.Parse(time.RFC3339, ost.DateTime)
			if perr != nil {
				return model.RemoteEvent{}, perr
			}
			rem.RecurrenceID = model.FormatRecurrenceID(t, false)
		}
	}

	return rem, nil
}

func fromEventDateTime(dt *calendar.EventDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, errors.New("missing event time")
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(dateLayout, dt.Date, time.UTC)
		return t, true, err
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	return t, false, err
}
