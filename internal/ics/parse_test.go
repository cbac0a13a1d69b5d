package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// icsDoc joins lines with CRLF as RFC 5545 requires.
func icsDoc(lines ...string) []byte {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func TestParse_EmptyBody(t *testing.T) {
	t.Parallel()

	if _, err := Parse(nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestParse_BasicEvent(t *testing.T) {
	t.Parallel()

	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:evt-1@example.com",
		"SEQUENCE:3",
		"SUMMARY:Team Standup",
		"DESCRIPTION:Daily check-in",
		"LOCATION:Room 1",
		"STATUS:CONFIRMED",
		"DTSTART:20250106T090000Z",
		"DTEND:20250106T091500Z",
		"END:VEVENT",
	)

	events, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.UID != "evt-1@example.com" {
		t.Errorf("UID = %q", ev.UID)
	}
	if ev.Sequence != 3 {
		t.Errorf("Sequence = %d, want 3", ev.Sequence)
	}
	if ev.Summary != "Team Standup" || ev.Description != "Daily check-in" || ev.Location != "Room 1" {
		t.Errorf("unexpected text fields: %+v", ev)
	}
	if ev.Status != model.StatusConfirmed {
		t.Errorf("Status = %q", ev.Status)
	}
	wantStart := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}
	if !ev.End.Equal(wantStart.Add(15 * time.Minute)) {
		t.Errorf("End = %v", ev.End)
	}
	if ev.AllDay || ev.Recurring() || ev.RecurrenceID != "" {
		t.Errorf("unexpected flags: %+v", ev)
	}
}

func TestParse_RecurringMasterKeepsRawRule(t *testing.T) {
	t.Parallel()

	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:rec-1",
		"SUMMARY:Weekly",
		"DTSTART:20250106T090000Z",
		"DTEND:20250106T100000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"EXDATE:20250113T090000Z",
		"END:VEVENT",
	)

	events, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ev := events[0]
	if len(ev.Recurrence) != 2 {
		t.Fatalf("Recurrence = %v", ev.Recurrence)
	}
	if ev.Recurrence[0] != "RRULE:FREQ=WEEKLY;BYDAY=MO" {
		t.Errorf("RRULE line = %q", ev.Recurrence[0])
	}
	if ev.Recurrence[1] != "EXDATE:20250113T090000Z" {
		t.Errorf("EXDATE line = %q", ev.Recurrence[1])
	}
}

func TestParse_OverrideInstance(t *testing.T) {
	t.Parallel()

	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:rec-1",
		"SEQUENCE:2",
		"SUMMARY:Weekly (moved)",
		"DTSTART:20250113T100000Z",
		"DTEND:20250113T110000Z",
		"RECURRENCE-ID:20250113T090000Z",
		"END:VEVENT",
	)

	events, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ev := events[0]
	if ev.RecurrenceID != "2025-01-13T09:00:00Z" {
		t.Errorf("RecurrenceID = %q", ev.RecurrenceID)
	}
	if ev.Recurring() {
		t.Error("an override must not carry recurrence lines")
	}
	key := ev.Key()
	if key.UID != "rec-1" || key.RecurrenceID == "" {
		t.Errorf("identity key = %+v", key)
	}
}

func TestParse_AllDayEvent(t *testing.T) {
	t.Parallel()

	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:day-1",
		"SUMMARY:Company Holiday",
		"DTSTART;VALUE=DATE:20250110",
		"END:VEVENT",
	)

	events, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ev := events[0]
	if !ev.AllDay {
		t.Fatal("expected all-day event")
	}
	if y, m, d := ev.Start.Date(); y != 2025 || m != time.January || d != 10 {
		t.Errorf("Start date = %v", ev.Start)
	}
	// A date-only event without DTEND spans one day.
	if ev.End.Sub(ev.Start) != 24*time.Hour {
		t.Errorf("End - Start = %v, want 24h", ev.End.Sub(ev.Start))
	}
	if ev.Status != model.StatusConfirmed {
		t.Errorf("default status = %q", ev.Status)
	}
}

func TestParse_MissingUIDGetsStableSyntheticOne(t *testing.T) {
	t.Parallel()

	body := icsDoc(
		"BEGIN:VEVENT",
		"SUMMARY:No UID Here",
		"DTSTART:20250106T090000Z",
		"DTEND:20250106T100000Z",
		"END:VEVENT",
	)

	first, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	second, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if first[0].UID == "" {
		t.Fatal("expected a synthetic UID")
	}
	if first[0].UID != second[0].UID {
		t.Fatalf("synthetic UID not stable across runs: %q vs %q", first[0].UID, second[0].UID)
	}
}

func TestParse_SkipsNonEventsAndLowercasesStatus(t *testing.T) {
	t.Parallel()

	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:c-1",
		"SUMMARY:Maybe",
		"STATUS:TENTATIVE",
		"DTSTART:20250106T090000Z",
		"DTEND:20250106T100000Z",
		"END:VEVENT",
	)

	events, err := Parse(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Status != model.StatusTentative {
		t.Errorf("Status = %q, want %q", events[0].Status, model.StatusTentative)
	}
}
