// Package selector buckets raw calendar events into the weekly and
// monthly-highlight sets that feed the summarizer. It is a pure function
// over in-memory data: no I/O, no clock reads, no mutation of its input.
package selector

import (
	"fmt"
	"sort"
	"time"

	"calsum/internal/models"
)

const (
	weeklyDays  = 7
	monthlyDays = 30
)

// Window is the pair of time boundaries used to classify events. All
// intervals are half-open: inclusive at the start, exclusive at the end.
type Window struct {
	Start          time.Time
	WeeklyEnd      time.Time
	MonthlyEnd     time.Time
	IncludeMonthly bool
}

// NewWindow builds the selection window for a run starting at now.
func NewWindow(now time.Time, includeMonthly bool) Window {
	return Window{
		Start:          now,
		WeeklyEnd:      now.Add(weeklyDays * 24 * time.Hour),
		MonthlyEnd:     now.Add(monthlyDays * 24 * time.Hour),
		IncludeMonthly: includeMonthly,
	}
}

// FetchEnd is the upper bound of the single combined fetch the event source
// should perform. In weekly-only mode no events beyond WeeklyEnd are needed.
func (w Window) FetchEnd() time.Time {
	if w.IncludeMonthly {
		return w.MonthlyEnd
	}
	return w.WeeklyEnd
}

// Result holds the two disjoint buckets plus accounting for events that
// were skipped as malformed. Weekly covers [Start, WeeklyEnd); Monthly
// covers [WeeklyEnd, MonthlyEnd) only, so no event appears in both.
type Result struct {
	Weekly      []*models.Event
	Monthly     []*models.Event
	Skipped     int
	SkipReasons []string
}

// Select filters and buckets events against the window.
//
// Declined events never reach either bucket. Events are classified by start
// time only; an event spanning the weekly/monthly boundary stays weekly.
// All-day events are bucketed by their start date, ignoring time of day.
// A missing start timestamp is a validation problem for that one event:
// it is counted and reported in SkipReasons, and the run continues.
func Select(events []*models.Event, w Window) Result {
	var res Result

	for _, ev := range events {
		if ev.Start.IsZero() {
			res.Skipped++
			res.SkipReasons = append(res.SkipReasons,
				fmt.Sprintf("event %q has no start time", eventLabel(ev)))
			continue
		}
		if ev.Response == models.ResponseDeclined {
			continue
		}

		start := ev.Start
		if ev.AllDay {
			start = startOfDay(start)
		}

		switch {
		case inRange(start, w.Start, w.WeeklyEnd):
			res.Weekly = append(res.Weekly, ev)
		case !w.IncludeMonthly:
			// Weekly-only mode: nothing beyond WeeklyEnd is inspected.
		case inRange(start, w.WeeklyEnd, w.MonthlyEnd):
			res.Monthly = append(res.Monthly, ev)
		}
	}

	sortBucket(res.Weekly)
	sortBucket(res.Monthly)
	return res
}

// inRange reports whether t is in the half-open interval [start, end).
func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// sortBucket orders ascending by start time, ties broken by title so the
// output is deterministic for events sharing a start.
func sortBucket(bucket []*models.Event) {
	sort.SliceStable(bucket, func(i, j int) bool {
		if bucket[i].Start.Equal(bucket[j].Start) {
			return bucket[i].Title < bucket[j].Title
		}
		return bucket[i].Start.Before(bucket[j].Start)
	})
}

func eventLabel(ev *models.Event) string {
	if ev.Title != "" {
		return ev.Title
	}
	if ev.ID != "" {
		return ev.ID
	}
	return "untitled"
}
