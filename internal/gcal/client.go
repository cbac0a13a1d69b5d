package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
	"github.com/pschmitt/gcal-import-ics/internal/model"
)

// Client is the Google Calendar implementation of the reconciler's Store.
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient wraps an authenticated HTTP client (see NewHTTPClient) into a
// calendar store bound to one calendar.
func NewClient(ctx context.Context, httpClient *http.Client, calendarID string) (*Client, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{service: service, calendarID: calendarID}, nil
}

// List pages through every event in [min, max) without expanding
// recurring events, so masters and their instance overrides come back as
// distinct items the reconciler can key individually.
func (c *Client) List(ctx context.Context, min, max time.Time) ([]model.RemoteEvent, error) {
	var out []model.RemoteEvent

	req := c.service.Events.List(c.calendarID).
		TimeMin(min.Format(time.RFC3339)).
		TimeMax(max.Format(time.RFC3339)).
		SingleEvents(false).
		MaxResults(2500)

	pageToken := ""
	for {
		if pageToken != "" {
			req.PageToken(pageToken)
		}
		r, err := req.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, item := range r.Items {
			rem, err := fromGoogleEvent(item)
			if err != nil {
				appLog.Warn("skipping unparseable remote event", "id", item.Id, "err", err)
				continue
			}
			out = append(out, rem)
		}
		pageToken = r.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return out, nil
}

// Import creates the event via the import endpoint, which preserves the
// iCalendar UID instead of assigning a fresh one. That keeps the identity
// key stable across runs.
func (c *Client) Import(ctx context.Context, ev model.Event) (model.RemoteEvent, error) {
	created, err := c.service.Events.Import(c.calendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return model.RemoteEvent{}, fmt.Errorf("import event %s: %w", ev.UID, err)
	}
	return fromGoogleEvent(created)
}

func (c *Client) Update(ctx context.Context, id string, ev model.Event) (model.RemoteEvent, error) {
	updated, err := c.service.Events.Update(c.calendarID, id, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return model.RemoteEvent{}, fmt.Errorf("update event %s: %w", id, err)
	}
	return fromGoogleEvent(updated)
}

// Delete removes an event. 404 and 410 mean it is already gone, which is
// the state we wanted.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.service.Events.Delete(c.calendarID, id).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			appLog.Debug("event already gone", "id", id, "code", apiErr.Code)
			return nil
		}
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}
