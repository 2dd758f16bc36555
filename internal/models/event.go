package models

import "time"

// ResponseStatus is the owning account's attendance response for an event.
type ResponseStatus string

const (
	ResponseAccepted    ResponseStatus = "accepted"
	ResponseDeclined    ResponseStatus = "declined"
	ResponseTentative   ResponseStatus = "tentative"
	ResponseNeedsAction ResponseStatus = "needsAction"
	ResponseNone        ResponseStatus = "none"
)

// Event represents a standard calendar event.
// This is an internal representation, independent of any specific calendar
// provider. Sources construct it once; nothing downstream mutates it.
type Event struct {
	ID          string         // Unique identifier for the event (e.g., from the source calendar)
	Title       string         // Summary or title of the event, may be empty
	Description string         // Detailed description of the event
	Start       time.Time      // Start time of the event
	End         time.Time      // End time of the event, never before Start
	Response    ResponseStatus // The owning account's attendance response
	AllDay      bool           // True for date-only events
	Location    string         // Location of the event
	Organizer   string         // Organizer's email or display name
	Attendees   []string       // List of attendee emails, excluding the owner
}
