// Package ics implements an event source backed by a published iCalendar
// feed (e.g. a Google Calendar "secret address in iCal format"). It is the
// alternative to the Google API source for users without OAuth credentials.
package ics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"calsum/internal/models"
)

// maxOccurrencesPerEvent caps recurrence expansion so a malformed RRULE
// cannot blow up a run.
const maxOccurrencesPerEvent = 1000

// FeedClient fetches and parses events from a single ICS feed URL.
type FeedClient struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewFeedClient creates a client for the given feed URL.
func NewFeedClient(logger *slog.Logger, url string) *FeedClient {
	return &FeedClient{
		url:    url,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Fetch downloads the feed and returns events whose occurrences fall in
// [start, end). Recurring events are expanded into individual instances.
func (c *FeedClient) Fetch(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating feed request: %v", models.ErrSourceUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching ICS feed: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ICS feed returned status %d", models.ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading ICS feed body: %v", models.ErrSourceUnavailable, err)
	}

	events, err := Parse(string(body), start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}

	c.logger.Info("Fetched events from ICS feed.", "count", len(events))
	return events, nil
}

// Parse decodes an iCalendar document and expands its events into concrete
// instances within [rangeStart, rangeEnd).
func Parse(data string, rangeStart, rangeEnd time.Time) ([]*models.Event, error) {
	if !strings.Contains(data, "BEGIN:VCALENDAR") {
		return nil, fmt.Errorf("response is not an iCalendar document")
	}

	decoder := ical.NewDecoder(strings.NewReader(data))
	var events []*models.Event

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			events = append(events, expandComponent(comp, rangeStart, rangeEnd)...)
		}
	}

	return events, nil
}

// expandComponent turns one VEVENT into zero or more event instances.
func expandComponent(comp *ical.Component, rangeStart, rangeEnd time.Time) []*models.Event {
	base, rawRRule := parseComponent(comp)

	if rawRRule == "" {
		return []*models.Event{base}
	}

	rule, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		// Unparseable recurrence: keep the base instance rather than
		// dropping the event entirely.
		return []*models.Event{base}
	}
	rule.DTStart(base.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range exceptionDates(comp, base.Start.Location()) {
		set.ExDate(ex)
	}

	duration := base.End.Sub(base.Start)
	occTimes := set.Between(rangeStart.In(base.Start.Location()), rangeEnd.In(base.Start.Location()), true)
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	instances := make([]*models.Event, 0, len(occTimes))
	for _, occStart := range occTimes {
		inst := *base
		inst.Start = occStart
		inst.End = occStart.Add(duration)
		inst.ID = base.ID + "-" + occStart.Format(time.RFC3339)
		instances = append(instances, &inst)
	}
	return instances
}

// parseComponent extracts the base event and raw RRULE from a VEVENT.
func parseComponent(comp *ical.Component) (*models.Event, string) {
	ev := &models.Event{Response: models.ResponseNone}

	if p := comp.Props.Get(ical.PropUID); p != nil {
		ev.ID = p.Value
	}
	if p := comp.Props.Get(ical.PropSummary); p != nil {
		ev.Title = p.Value
	}
	if p := comp.Props.Get(ical.PropDescription); p != nil {
		ev.Description = p.Value
	}
	if p := comp.Props.Get(ical.PropLocation); p != nil {
		ev.Location = p.Value
	}
	if p := comp.Props.Get(ical.PropOrganizer); p != nil {
		ev.Organizer = strings.TrimPrefix(p.Value, "mailto:")
	}

	// A cancelled VEVENT is never relevant to the user; treat it like a
	// declined meeting so it cannot reach the summarizer.
	if p := comp.Props.Get(ical.PropStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		ev.Response = models.ResponseDeclined
	}

	if p := comp.Props.Get(ical.PropDateTimeStart); p != nil {
		ev.AllDay = p.ValueType() == ical.ValueDate
		if t, err := parseDateTimeProp(p); err == nil {
			ev.Start = t
		}
	}
	if p := comp.Props.Get(ical.PropDateTimeEnd); p != nil {
		if t, err := parseDateTimeProp(p); err == nil {
			ev.End = t
		}
	}

	// Fallback: feeds occasionally omit UID; derive a deterministic ID so
	// de-dup and logging still work.
	if ev.ID == "" && !ev.Start.IsZero() {
		ev.ID = ev.Start.Format(time.RFC3339) + "-" + ev.Title
	}

	var rawRRule string
	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		rawRRule = p.Value
	}
	return ev, rawRRule
}

// parseDateTimeProp handles both DATE-TIME and DATE values, falling back to
// the common raw formats feeds use when the standard decoding fails.
func parseDateTimeProp(prop *ical.Prop) (time.Time, error) {
	if t, err := prop.DateTime(time.Local); err == nil {
		return t, nil
	}

	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, prop.Value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse datetime value: %s", prop.Value)
}

// exceptionDates collects EXDATE values, aligned to the event's timezone.
func exceptionDates(comp *ical.Component, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		if t, err := parseDateTimeProp(&p); err == nil {
			out = append(out, t.In(loc))
		}
	}
	return out
}
