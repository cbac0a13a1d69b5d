package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pschmitt/gcal-import-ics/internal/ics"
)

func writeICS(t *testing.T, lines ...string) string {
	t.Helper()
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	path := filepath.Join(t.TempDir(), "cal.ics")
	if err := os.WriteFile(path, []byte(strings.Join(all, "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(t *testing.T, store *fakeStore, source string) *Runner {
	t.Helper()
	fetcher, err := ics.NewFetcher("", "")
	if err != nil {
		t.Fatal(err)
	}
	return &Runner{
		Fetcher: fetcher,
		Store:   store,
		Source:  source,
		Now:     func() time.Time { return testNow },
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	t.Parallel()

	source := writeICS(t,
		"BEGIN:VEVENT",
		"UID:new-1",
		"SUMMARY:Planning",
		"DTSTART:20250602T090000Z",
		"DTEND:20250602T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:known-1",
		"SEQUENCE:2",
		"SUMMARY:Standup (moved)",
		"DTSTART:20250603T100000Z",
		"DTEND:20250603T101500Z",
		"END:VEVENT",
	)

	known := remoteEvent("rem-1", "known-1", 1, 24*time.Hour)
	store := newFakeStore(known)
	runner := newTestRunner(t, store, source)

	sum, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum.Created != 1 || sum.Updated != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	// A second pass changes nothing.
	sum, err = runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if sum.Created != 0 || sum.Updated != 0 || sum.Skipped != 2 {
		t.Fatalf("second run summary = %+v", sum)
	}
}

func TestRunner_DryRunTouchesNothing(t *testing.T) {
	t.Parallel()

	source := writeICS(t,
		"BEGIN:VEVENT",
		"UID:new-1",
		"SUMMARY:Planning",
		"DTSTART:20250602T090000Z",
		"DTEND:20250602T100000Z",
		"END:VEVENT",
	)

	store := newFakeStore()
	runner := newTestRunner(t, store, source)

	plan, err := runner.DryRun(context.Background())
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(plan.Creates) != 1 {
		t.Fatalf("plan = %+v", plan)
	}
	if store.importCalls != 0 || store.updateCalls != 0 || store.deleteCalls != 0 {
		t.Fatal("dry run must not touch the store")
	}
}

func TestRunner_WindowFiltersIncoming(t *testing.T) {
	t.Parallel()

	source := writeICS(t,
		"BEGIN:VEVENT",
		"UID:soon",
		"SUMMARY:This week",
		"DTSTART:20250603T090000Z",
		"DTEND:20250603T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:later",
		"SUMMARY:Next quarter",
		"DTSTART:20250901T090000Z",
		"DTEND:20250901T100000Z",
		"END:VEVENT",
	)

	store := newFakeStore()
	runner := newTestRunner(t, store, source)
	runner.WindowDays = 7

	sum, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("summary = %+v, want one create inside the window", sum)
	}
}

func TestRunner_PruneKeepsFeedEventsBeyondWindow(t *testing.T) {
	t.Parallel()

	// "later" lies outside the sync window but is still in the feed, so a
	// windowed run with pruning must not treat it as fringe. "gone" is
	// absent from the feed entirely and does get pruned.
	source := writeICS(t,
		"BEGIN:VEVENT",
		"UID:soon",
		"SUMMARY:This week",
		"DTSTART:20250603T090000Z",
		"DTEND:20250603T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:later",
		"SUMMARY:Next quarter",
		"DTSTART:20250901T090000Z",
		"DTEND:20250901T100000Z",
		"END:VEVENT",
	)

	store := newFakeStore(
		remoteEvent("rem-later", "later", 0, 92*24*time.Hour),
		remoteEvent("rem-gone", "gone", 0, 48*time.Hour),
	)
	runner := newTestRunner(t, store, source)
	runner.WindowDays = 7
	runner.Prune = true

	sum, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum.Deleted != 1 {
		t.Fatalf("summary = %+v, want exactly one prune delete", sum)
	}
	if _, ok := store.events["rem-later"]; !ok {
		t.Fatal("pruned an event that is still in the feed")
	}
	if _, ok := store.events["rem-gone"]; ok {
		t.Fatal("fringe event survived pruning")
	}
}

func TestRunner_FetchFailureAbortsBeforeRemote(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	runner := newTestRunner(t, store, filepath.Join(t.TempDir(), "missing.ics"))

	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing source")
	}
	if store.importCalls != 0 || store.deleteCalls != 0 {
		t.Fatal("a failed fetch must not mutate the calendar")
	}
}
