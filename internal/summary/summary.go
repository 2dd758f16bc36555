// Package summary asks the Anthropic Messages API to turn bucketed calendar
// events into a conversational summary.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"calsum/internal/models"
)

const (
	messagesEndpoint = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
	model            = "claude-3-5-sonnet-20241022"
	maxTokens        = 1500

	apiKeyHeader      = "x-api-key"
	versionHeader     = "anthropic-version"
	contentTypeHeader = "Content-Type"
	jsonContentType   = "application/json"

	descriptionPreviewLimit = 200
)

// HTTPClient is the subset of http.Client the summarizer needs; tests swap
// in a mock.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client generates calendar summaries via the Anthropic Messages API.
type Client struct {
	Log    *slog.Logger
	APIKey string
	HTTP   HTTPClient
	Prompt string
}

// NewClient builds a summarizer. templatePath points at a prompt template
// file; when it does not exist the built-in default prompt is used.
func NewClient(logger *slog.Logger, apiKey, templatePath string) *Client {
	prompt, err := os.ReadFile(templatePath)
	if err != nil {
		logger.Warn("Prompt template not found, using default.", "path", templatePath)
		return &Client{
			Log:    logger,
			APIKey: apiKey,
			HTTP:   &http.Client{Timeout: 60 * time.Second},
			Prompt: defaultPrompt,
		}
	}
	return &Client{
		Log:    logger,
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: 60 * time.Second},
		Prompt: string(prompt),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Summarize renders both buckets to plain text and asks the model for prose.
func (c *Client) Summarize(ctx context.Context, weekly, monthly []*models.Event) (string, error) {
	eventsText := FormatEvents(weekly, monthly)
	userMessage := c.Prompt + "\n\n" + eventsText

	c.Log.Debug("Requesting summary.", "weeklyEvents", len(weekly), "monthlyEvents", len(monthly))

	body, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", models.ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", models.ErrRequestFailed, err)
	}
	req.Header.Set(apiKeyHeader, c.APIKey)
	req.Header.Set(versionHeader, apiVersion)
	req.Header.Set(contentTypeHeader, jsonContentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: performing request: %v", models.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response body: %v", models.ErrRequestFailed, err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: unmarshaling response: %v", models.ErrRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("%w: API returned %d (%s): %s",
				models.ErrRequestFailed, resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
		}
		return "", fmt.Errorf("%w: API returned status %d", models.ErrRequestFailed, resp.StatusCode)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			c.Log.Debug("Summary generated.", "characters", len(block.Text))
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: response contained no text content", models.ErrRequestFailed)
}

// FormatEvents renders both buckets into the plain-text form sent to the
// model: a detailed weekly section and, when present, a monthly look-ahead.
func FormatEvents(weekly, monthly []*models.Event) string {
	var b strings.Builder

	b.WriteString("=== WEEKLY EVENTS (Next 7 Days) ===\n\n")
	if len(weekly) == 0 {
		b.WriteString("No events scheduled for the next week.\n")
	}
	for _, ev := range weekly {
		b.WriteString(FormatEvent(ev))
		b.WriteString("\n")
	}

	if len(monthly) > 0 {
		b.WriteString("\n=== MONTHLY LOOK-AHEAD (Important Items Beyond This Week) ===\n\n")
		for _, ev := range monthly {
			b.WriteString(FormatEvent(ev))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// FormatEvent renders one event: time range, title, location if present,
// then a truncated description and the attendee count.
func FormatEvent(ev *models.Event) string {
	title := ev.Title
	if title == "" {
		title = "No Title"
	}

	var timeStr string
	switch {
	case ev.AllDay:
		timeStr = ev.Start.Format("2006-01-02") + " (All Day)"
	case ev.End.IsZero():
		timeStr = ev.Start.Format("2006-01-02 15:04")
	default:
		timeStr = ev.Start.Format("2006-01-02 15:04") + " - " + ev.End.Format("15:04")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "• %s\n", title)
	fmt.Fprintf(&b, "  Time: %s\n", timeStr)
	if ev.Location != "" {
		fmt.Fprintf(&b, "  Location: %s\n", ev.Location)
	}
	if ev.Description != "" {
		desc := ev.Description
		if len(desc) > descriptionPreviewLimit {
			desc = desc[:descriptionPreviewLimit] + "..."
		}
		fmt.Fprintf(&b, "  Description: %s\n", desc)
	}
	if len(ev.Attendees) > 0 {
		fmt.Fprintf(&b, "  Attendees: %d people\n", len(ev.Attendees))
	}
	return b.String()
}

const defaultPrompt = `You are a helpful personal assistant analyzing a calendar for the week ahead.

Your task is to:
1. Summarize the upcoming week in a conversational, concise tone
2. Group related meetings meaningfully
3. Highlight any scheduling issues or conflicts (back-to-back meetings, etc.)
4. Suggest preparation needs for important events
5. For monthly look-ahead items: surface genuinely important items like deadlines, reminders, birthdays, or special occasions

Keep the tone helpful and conversational - like a smart assistant who knows the schedule well.
Avoid being robotic or overly formal. Be concise but insightful.`
