// Package pipeline sequences the four stages of a summary run: fetch,
// select, summarize, deliver. Stages run strictly in order; each receives
// an immutable snapshot of the previous stage's output.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"calsum/internal/models"
	"calsum/internal/selector"
	"calsum/internal/whatsapp"
)

// EventSource supplies raw calendar events for a bounded time window.
type EventSource interface {
	Fetch(ctx context.Context, start, end time.Time) ([]*models.Event, error)
}

// Summarizer turns bucketed events into prose.
type Summarizer interface {
	Summarize(ctx context.Context, weekly, monthly []*models.Event) (string, error)
}

// Sink delivers the finished summary to the recipient.
type Sink interface {
	Send(ctx context.Context, text string) (*whatsapp.Receipt, error)
}

// Options are the run-time modes recognized at the process boundary.
type Options struct {
	DryRun     bool // skip the delivery call, print the summary instead
	WeeklyOnly bool // disable the monthly look-ahead bucket
}

// Pipeline orchestrates one summary run.
type Pipeline struct {
	logger     *slog.Logger
	source     EventSource
	summarizer Summarizer
	sink       Sink
	opts       Options
	now        func() time.Time
}

// New creates a Pipeline. nowFn may be nil, in which case time.Now is used;
// tests inject a fixed clock.
func New(logger *slog.Logger, source EventSource, summarizer Summarizer, sink Sink, opts Options, nowFn func() time.Time) *Pipeline {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Pipeline{
		logger:     logger,
		source:     source,
		summarizer: summarizer,
		sink:       sink,
		opts:       opts,
		now:        nowFn,
	}
}

// Run executes one complete pipeline cycle.
//
// A fatal stage error aborts the run. Malformed individual events are
// counted and logged but never abort; zero events in both buckets ends the
// run successfully with nothing sent.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := p.logger.With("run", uuid.NewString())
	logger.Info("Starting summary run.", "dryRun", p.opts.DryRun, "weeklyOnly", p.opts.WeeklyOnly)

	window := selector.NewWindow(p.now(), !p.opts.WeeklyOnly)

	// One combined fetch; bucketing happens locally.
	events, err := p.source.Fetch(ctx, window.Start, window.FetchEnd())
	if err != nil {
		return fmt.Errorf("fetching calendar events: %w", err)
	}

	result := selector.Select(events, window)
	if result.Skipped > 0 {
		logger.Warn("Skipped malformed events.", "count", result.Skipped, "reasons", result.SkipReasons)
	}
	logger.Info("Bucketed events.", "weekly", len(result.Weekly), "monthly", len(result.Monthly))

	if len(result.Weekly) == 0 && len(result.Monthly) == 0 {
		logger.Info("No events found in calendar. Nothing to summarize.")
		return nil
	}

	text, err := p.summarizer.Summarize(ctx, result.Weekly, result.Monthly)
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}
	logger.Info("Summary generated.", "characters", len(text))

	if p.opts.DryRun {
		logger.Info("Dry run: skipping delivery.")
		fmt.Println(text)
		return nil
	}

	receipt, err := p.sink.Send(ctx, text)
	if err != nil {
		return fmt.Errorf("delivering summary: %w", err)
	}

	logger.Info("Summary run finished.", "sid", receipt.SID, "status", receipt.Status)
	return nil
}
