package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// Parse parses an ICS payload into normalized events. Non-VEVENT
// components are skipped; a VEVENT that fails to parse is logged and
// skipped without aborting the run.
func Parse(body []byte) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(cal.Events()))
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("skipping unparseable VEVENT", "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("parsed ICS payload", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	start, end, allDay, err := parseTimes(ve)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End = end
	out.AllDay = allDay

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	out.Status = model.StatusConfirmed
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && p.Value != "" {
		out.Status = strings.ToLower(p.Value)
	}

	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil && uidProp.Value != "" {
		out.UID = uidProp.Value
	} else {
		out.UID = model.SyntheticUID(out.Summary, out.Start)
		appLog.Warn("VEVENT has no UID, derived one", "uid", out.UID, "summary", out.Summary)
	}

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Sequence = n
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil && rruleProp.Value != "" {
		out.Recurrence = append(out.Recurrence, "RRULE:"+rruleProp.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		if p.Value != "" {
			out.Recurrence = append(out.Recurrence, "EXDATE:"+p.Value)
		}
	}

	// RECURRENCE-ID marks this VEVENT as an override of one instance of a
	// recurring event with the same UID.
	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil && ridProp.Value != "" {
		rid, err := parsePropTime(ridProp)
		if err != nil {
			return out, err
		}
		out.RecurrenceID = model.FormatRecurrenceID(rid, !strings.Contains(ridProp.Value, "T"))
		// An override describes one concrete instance; any recurrence
		// lines on it are bogus.
		out.Recurrence = nil
	}

	return out, nil
}

func parseTimes(ve *ical.VEvent) (start, end time.Time, allDay bool, err error) {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return start, end, false, errors.New("missing DTSTART")
	}

	allDay = isDateOnly(dtStart)

	start, err = parsePropTime(dtStart)
	if err != nil {
		return start, end, false, err
	}

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, err = parsePropTime(dtEnd)
		if err != nil {
			return start, end, false, err
		}
	} else if allDay {
		// RFC 5545: a date-only event without DTEND spans one day.
		end = start.AddDate(0, 0, 1)
	} else {
		end = start
	}

	return start, end, allDay, nil
}

func isDateOnly(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// parsePropTime parses a DATE or DATE-TIME property value, honoring a
// TZID parameter when present.
func parsePropTime(p *ical.IANAProperty) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	loc := time.Local
	if params := p.ICalParameters; params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			if l, err := time.LoadLocation(tzs[0]); err == nil {
				loc = l
			}
		}
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
