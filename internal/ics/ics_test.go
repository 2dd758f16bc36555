package ics

import (
	"strings"
	"testing"
	"time"

	"calsum/internal/models"
)

const singleEventFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:ev-1@example.com
SUMMARY:Dentist
LOCATION:Main St 1
DTSTART:20250312T100000Z
DTEND:20250312T110000Z
END:VEVENT
END:VCALENDAR
`

const recurringEventFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:standup@example.com
SUMMARY:Standup
DTSTART:20250310T090000Z
DTEND:20250310T091500Z
RRULE:FREQ=DAILY;COUNT=10
EXDATE:20250312T090000Z
END:VEVENT
END:VCALENDAR
`

const cancelledEventFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:gone@example.com
SUMMARY:Cancelled sync
STATUS:CANCELLED
DTSTART:20250312T100000Z
DTEND:20250312T110000Z
END:VEVENT
END:VCALENDAR
`

func TestParseSingleEvent(t *testing.T) {
	rangeStart := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(30 * 24 * time.Hour)

	events, err := Parse(singleEventFeed, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	ev := events[0]
	if ev.ID != "ev-1@example.com" {
		t.Errorf("ID = %q", ev.ID)
	}
	if ev.Title != "Dentist" {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Location != "Main St 1" {
		t.Errorf("Location = %q", ev.Location)
	}
	wantStart := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}
	if ev.AllDay {
		t.Error("timed event marked all-day")
	}
	if ev.Response != models.ResponseNone {
		t.Errorf("Response = %s, want none", ev.Response)
	}
}

func TestParseRecurringEventExpansion(t *testing.T) {
	rangeStart := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	events, err := Parse(recurringEventFeed, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// Daily from March 10, EXDATE removes March 12, range ends before
	// March 15: expect the 10th, 11th, 13th and 14th.
	if len(events) != 4 {
		t.Fatalf("got %d instances, want 4: %+v", len(events), events)
	}

	seen := map[int]bool{}
	for _, ev := range events {
		seen[ev.Start.Day()] = true
		if !strings.HasPrefix(ev.ID, "standup@example.com-") {
			t.Errorf("instance ID %q not derived from UID", ev.ID)
		}
		if got := ev.End.Sub(ev.Start); got != 15*time.Minute {
			t.Errorf("instance duration = %v, want 15m", got)
		}
	}
	for _, day := range []int{10, 11, 13, 14} {
		if !seen[day] {
			t.Errorf("missing instance on March %d", day)
		}
	}
	if seen[12] {
		t.Error("EXDATE instance on March 12 not excluded")
	}
}

func TestParseCancelledEventMarkedDeclined(t *testing.T) {
	rangeStart := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	events, err := Parse(cancelledEventFeed, rangeStart, rangeStart.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Response != models.ResponseDeclined {
		t.Errorf("Response = %s, want declined", events[0].Response)
	}
}

func TestParseRejectsNonCalendarBody(t *testing.T) {
	if _, err := Parse("<html>not a calendar</html>", time.Now(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("Parse() accepted a non-iCalendar body")
	}
}
