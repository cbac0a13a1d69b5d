package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/pschmitt/gcal-import-ics/internal/ics"
	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// Runner wires the ICS source and the remote store into a single
// reconciliation pass. It is what the CLI and the status server drive.
type Runner struct {
	Fetcher *ics.Fetcher
	Store   Store

	// Source is the ICS file path or URL.
	Source string

	// WindowDays limits the incoming set to events occurring within the
	// next N days. Zero means the whole feed.
	WindowDays int

	// Prune deletes future remote events absent from the feed.
	Prune bool

	// Now is injected for tests; nil means time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) window() ics.Window {
	if r.WindowDays <= 0 {
		return ics.Window{}
	}
	now := r.now()
	return ics.Window{Start: now, End: now.AddDate(0, 0, r.WindowDays)}
}

// load fetches and parses the feed and gathers the remote state. The
// returned UID set covers the whole feed, before any window filtering,
// so pruning can tell "absent from the feed" apart from "outside the
// window".
func (r *Runner) load(ctx context.Context) ([]model.Event, []model.RemoteEvent, map[string]bool, error) {
	body, err := r.Fetcher.Fetch(ctx, r.Source)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch ICS: %w", err)
	}

	parsed, err := ics.Parse(body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse ICS: %w", err)
	}
	sourceUIDs := make(map[string]bool, len(parsed))
	for _, ev := range parsed {
		sourceUIDs[ev.UID] = true
	}
	incoming := ics.FilterWindow(parsed, r.window())

	remote, err := r.Store.List(ctx, ListMin, ListMax)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list remote events: %w", err)
	}

	appLog.Info("loaded events", "incoming", len(incoming), "remote", len(remote))
	return incoming, remote, sourceUIDs, nil
}

func (r *Runner) options(sourceUIDs map[string]bool) Options {
	return Options{Prune: r.Prune, SourceUIDs: sourceUIDs, Now: r.now()}
}

// DryRun builds the plan without touching the remote calendar.
func (r *Runner) DryRun(ctx context.Context) (Plan, error) {
	incoming, remote, sourceUIDs, err := r.load(ctx)
	if err != nil {
		return Plan{}, err
	}
	return BuildPlan(incoming, remote, r.options(sourceUIDs)), nil
}

// Run performs one full reconciliation pass.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	incoming, remote, sourceUIDs, err := r.load(ctx)
	if err != nil {
		return Summary{}, err
	}

	plan := BuildPlan(incoming, remote, r.options(sourceUIDs))
	if plan.Empty() {
		appLog.Info("calendar is up to date", "skipped", len(plan.Skips))
	}

	sum, err := Apply(ctx, r.Store, plan)
	appLog.Info("sync finished", "summary", sum)
	return sum, err
}
