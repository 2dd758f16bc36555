package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"calsum/internal/config"
	"calsum/internal/google"
	"calsum/internal/ics"
	"calsum/internal/pipeline"
	"calsum/internal/summary"
	"calsum/internal/whatsapp"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calsum",
		Usage: "Summarize upcoming calendar events with Claude and deliver the summary over WhatsApp.",
		Commands: []*cli.Command{
			authCommand(),
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and cache the API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger(false)
			logger.Info("Starting Google authentication flow.")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			conf, err := google.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCredentialsPath)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, conf, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			if err := google.SaveToken(cfg.GoogleTokenPath, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", cfg.GoogleTokenPath)
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fetch events, generate the summary, and send it.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Generate the summary but do not send the WhatsApp message."},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable verbose logging."},
			&cli.BoolFlag{Name: "weekly-only", Usage: "Only include weekly events, skip the monthly look-ahead."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Flags override the environment.
			if c.Bool("dry-run") {
				cfg.DryRun = true
			}
			if c.Bool("verbose") {
				cfg.Verbose = true
			}

			logger := setupLogger(cfg.Verbose)

			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.DryRun {
				logger.Info("Running in dry-run mode. No WhatsApp message will be sent.")
			}

			var source pipeline.EventSource
			if cfg.ICSURL != "" {
				logger.Debug("Using ICS feed event source.")
				source = ics.NewFeedClient(logger, cfg.ICSURL)
			} else {
				gClient, err := google.NewClient(c.Context, logger, google.Options{
					ClientID:        cfg.GoogleClientID,
					ClientSecret:    cfg.GoogleClientSecret,
					CredentialsPath: cfg.GoogleCredentialsPath,
					TokenPath:       cfg.GoogleTokenPath,
					CalendarID:      cfg.CalendarID,
				})
				if err != nil {
					return fmt.Errorf("failed to create google calendar client: %w", err)
				}
				source = gClient
			}

			summarizer := summary.NewClient(logger, cfg.AnthropicAPIKey, cfg.PromptTemplatePath)
			sink := whatsapp.NewClient(logger, cfg.TwilioAccountSID, cfg.TwilioAuthToken,
				cfg.TwilioWhatsAppFrom, cfg.TwilioWhatsAppTo)

			p := pipeline.New(logger, source, summarizer, sink, pipeline.Options{
				DryRun:     cfg.DryRun,
				WeeklyOnly: c.Bool("weekly-only"),
			}, nil)

			return p.Run(c.Context)
		},
	}
}

func setupLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
