// Package whatsapp delivers summaries over WhatsApp using the Twilio
// Messages API.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"calsum/internal/models"
)

const (
	twilioAPIBase = "https://api.twilio.com/2010-04-01"

	// Twilio rejects WhatsApp bodies over this size, so the sink enforces
	// the ceiling before calling the API.
	maxMessageLength  = 1600
	truncateAt        = 1550
	truncationMarker  = "\n\n... (message truncated)"
	defaultHeaderLine = "📅 Weekly Calendar Summary"
)

// basicAuthTransport adds Twilio Basic Auth and a User-Agent to requests.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "calsum/1.0")
	return t.Transport.RoundTrip(req)
}

// HTTPClient is the subset of http.Client the sink needs; tests swap in a
// mock.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Receipt is the delivery acknowledgement returned by Twilio.
type Receipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client sends WhatsApp messages to one recipient via Twilio.
type Client struct {
	Log        *slog.Logger
	HTTP       HTTPClient
	AccountSID string
	From       string
	To         string
}

// NewClient builds a sink with Basic Auth wired into the HTTP transport.
func NewClient(logger *slog.Logger, accountSID, authToken, from, to string) *Client {
	transport := &basicAuthTransport{
		Username:  accountSID,
		Password:  authToken,
		Transport: http.DefaultTransport,
	}
	return &Client{
		Log:        logger,
		HTTP:       &http.Client{Transport: transport, Timeout: 30 * time.Second},
		AccountSID: accountSID,
		From:       from,
		To:         to,
	}
}

// Send delivers a summary, prefixed with a header line and truncated to the
// Twilio WhatsApp body ceiling.
func (c *Client) Send(ctx context.Context, text string) (*Receipt, error) {
	body := defaultHeaderLine + "\n\n" + text
	if len(body) > maxMessageLength {
		c.Log.Warn("Message exceeds WhatsApp body limit, truncating.",
			"length", len(body), "limit", maxMessageLength)
		body = truncate(body, truncateAt) + truncationMarker
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, c.AccountSID)
	form := url.Values{}
	form.Set("Body", body)
	form.Set("From", c.From)
	form.Set("To", c.To)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", models.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request: %v", models.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", models.ErrDeliveryFailed, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var terr twilioError
		if json.Unmarshal(respBody, &terr) == nil && terr.Message != "" {
			return nil, fmt.Errorf("%w: twilio returned %d (code %d): %s%s",
				models.ErrDeliveryFailed, resp.StatusCode, terr.Code, terr.Message, hint(terr.Message))
		}
		return nil, fmt.Errorf("%w: twilio returned status %d", models.ErrDeliveryFailed, resp.StatusCode)
	}

	var receipt Receipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling receipt: %v", models.ErrDeliveryFailed, err)
	}

	c.Log.Info("WhatsApp message sent.", "sid", receipt.SID, "status", receipt.Status)
	return &receipt, nil
}

// truncate cuts at a byte limit without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// hint maps common Twilio failures to actionable advice, mirroring the
// sandbox pitfalls users actually hit.
func hint(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not a valid whatsapp"):
		return " (has the recipient joined the Twilio sandbox? Send the join code to the sandbox number)"
	case strings.Contains(lower, "authenticat"):
		return " (check TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN)"
	case strings.Contains(lower, "unverified"):
		return " (verify the recipient number in the Twilio console)"
	}
	return ""
}
