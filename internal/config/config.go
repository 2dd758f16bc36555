// Package config loads runtime configuration from the environment.
// Credentials never live in the codebase; a .env file (loaded by the CLI
// entrypoint) covers local development and plain environment variables
// cover CI.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env"

	"calsum/internal/models"
)

// Config is the full set of runtime settings for one pipeline run.
type Config struct {
	// Google Calendar
	GoogleClientID        string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCredentialsPath string `env:"GOOGLE_CALENDAR_CREDENTIALS_PATH" envDefault:"./credentials.json"`
	GoogleTokenPath       string `env:"GOOGLE_CALENDAR_TOKEN_PATH" envDefault:"./token.json"`
	CalendarID            string `env:"CALENDAR_ID" envDefault:"primary"`

	// Alternative event source: a published (secret) ICS feed address.
	// When set, the Google client is not used and its credentials are
	// not required.
	ICSURL string `env:"CALENDAR_ICS_URL"`

	// Anthropic
	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY"`
	PromptTemplatePath string `env:"PROMPT_TEMPLATE_PATH" envDefault:"./prompts/summary_prompt.txt"`

	// Twilio WhatsApp
	TwilioAccountSID   string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `env:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `env:"TWILIO_WHATSAPP_FROM" envDefault:"whatsapp:+14155238886"` // Twilio sandbox number
	TwilioWhatsAppTo   string `env:"TWILIO_WHATSAPP_TO"`

	// Run modes. Flags override these.
	DryRun  bool `env:"DRY_RUN" envDefault:"false"`
	Verbose bool `env:"VERBOSE" envDefault:"false"`
}

// Load parses the environment into a Config. It does not validate; call
// Validate once flag overrides have been applied.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that every required credential is present, reporting all
// missing ones at once so the user fixes the environment in a single pass.
// It runs before any network call.
func (c *Config) Validate() error {
	var missing []string

	if c.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.TwilioWhatsAppTo == "" {
		missing = append(missing, "TWILIO_WHATSAPP_TO")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required environment variables: %s",
			models.ErrConfiguration, strings.Join(missing, ", "))
	}

	// Google credentials are only needed when fetching from Google.
	if c.ICSURL == "" && (c.GoogleClientID == "" || c.GoogleClientSecret == "") {
		if _, err := os.Stat(c.GoogleCredentialsPath); err != nil {
			return fmt.Errorf("%w: google calendar credentials not found at %s; "+
				"provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, download "+
				"credentials.json from Google Cloud Console, or set CALENDAR_ICS_URL",
				models.ErrConfiguration, c.GoogleCredentialsPath)
		}
	}

	return nil
}
