package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calsum/internal/models"
)

// Options carries everything the client needs for one process run. No
// credential state lives in package scope.
type Options struct {
	ClientID        string
	ClientSecret    string
	CredentialsPath string // fallback credentials.json when ID/secret unset
	TokenPath       string // OAuth token cache, written back on refresh
	CalendarID      string
}

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// NewClient creates a new Google Calendar client. It loads the cached OAuth
// token, refreshes it if expired, persists the refreshed token back to the
// cache file, and builds an authenticated Calendar service.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*CalendarClient, error) {
	conf, err := OAuthConfig(opts.ClientID, opts.ClientSecret, opts.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := TokenFromFile(opts.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("could not load token from %s: %w. Please run the 'auth' command first", opts.TokenPath, err)
	}

	ts := conf.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("could not refresh token: %w. Please run the 'auth' command again", err)
	}
	if fresh.AccessToken != token.AccessToken {
		logger.Info("Refreshed expired Google Calendar token.", "file", opts.TokenPath)
		if err := SaveToken(opts.TokenPath, fresh); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}

	service, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &CalendarClient{service: service, calendarID: calendarID, logger: logger}, nil
}

// Fetch retrieves events in [start, end) from the configured calendar.
// Recurring events are expanded into individual instances by the API.
func (c *CalendarClient) Fetch(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	c.logger.Debug("Fetching events", "calendarID", c.calendarID, "from", start, "to", end)

	events, err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to retrieve events: %v", models.ErrSourceUnavailable, err)
	}

	c.logger.Info("Fetched events from Google Calendar.", "count", len(events.Items), "calendarID", c.calendarID)
	return toInternalEvents(events.Items), nil
}

// toInternalEvents converts Google Calendar events to the internal Event
// model. Events with an unparseable start keep a zero Start so the selector
// can count them as skipped instead of losing them silently.
func toInternalEvents(googleEvents []*calendar.Event) []*models.Event {
	internalEvents := make([]*models.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		ev := &models.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Response:    ownResponse(item),
		}

		if item.Organizer != nil {
			ev.Organizer = item.Organizer.Email
		}
		for _, a := range item.Attendees {
			if !a.Self {
				ev.Attendees = append(ev.Attendees, a.Email)
			}
		}

		ev.Start, ev.AllDay = parseEventTime(item.Start)
		ev.End, _ = parseEventTime(item.End)

		internalEvents = append(internalEvents, ev)
	}
	return internalEvents
}

// parseEventTime handles both timed (dateTime) and all-day (date) values.
func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, time.Local)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// ownResponse extracts the owning account's attendance response from the
// attendee entry marked self. Events without attendees (personal entries)
// report ResponseNone.
func ownResponse(item *calendar.Event) models.ResponseStatus {
	for _, a := range item.Attendees {
		if !a.Self {
			continue
		}
		switch a.ResponseStatus {
		case "accepted":
			return models.ResponseAccepted
		case "declined":
			return models.ResponseDeclined
		case "tentative":
			return models.ResponseTentative
		case "needsAction":
			return models.ResponseNeedsAction
		}
	}
	return models.ResponseNone
}

// OAuthConfig returns an OAuth2 config for the calendar.readonly scope.
// It prioritizes explicit client ID/secret over a local credentials file.
func OAuthConfig(clientID, clientSecret, credentialsPath string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("%s not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or download the credentials file from Google Cloud Console", credentialsPath)
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	conf, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	conf.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return conf, nil
}

// TokenFromWeb is called by the auth flow to exchange an authorization code.
func TokenFromWeb(ctx context.Context, conf *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return conf.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// TokenFromFile retrieves a token from a local file.
func TokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
