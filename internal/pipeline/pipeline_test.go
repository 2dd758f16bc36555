package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"calsum/internal/models"
	"calsum/internal/pipeline"
	"calsum/internal/whatsapp"
)

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	events    []*models.Event
	err       error
	gotStart  time.Time
	gotEnd    time.Time
	callCount int
}

func (f *fakeSource) Fetch(_ context.Context, start, end time.Time) ([]*models.Event, error) {
	f.callCount++
	f.gotStart, f.gotEnd = start, end
	return f.events, f.err
}

type fakeSummarizer struct {
	text       string
	err        error
	gotWeekly  []*models.Event
	gotMonthly []*models.Event
	called     bool
}

func (f *fakeSummarizer) Summarize(_ context.Context, weekly, monthly []*models.Event) (string, error) {
	f.called = true
	f.gotWeekly, f.gotMonthly = weekly, monthly
	return f.text, f.err
}

type fakeSink struct {
	err     error
	gotText string
	called  bool
}

func (f *fakeSink) Send(_ context.Context, text string) (*whatsapp.Receipt, error) {
	f.called = true
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return &whatsapp.Receipt{SID: "SM1", Status: "queued"}, nil
}

func upcoming(id string, daysAhead int) *models.Event {
	start := now.Add(time.Duration(daysAhead) * 24 * time.Hour)
	return &models.Event{
		ID:       id,
		Title:    "Event " + id,
		Start:    start,
		End:      start.Add(time.Hour),
		Response: models.ResponseAccepted,
	}
}

func TestPipelineRun(t *testing.T) {
	t.Run("full run delivers summary", func(t *testing.T) {
		source := &fakeSource{events: []*models.Event{upcoming("w", 2), upcoming("m", 12)}}
		summarizer := &fakeSummarizer{text: "your week"}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink, pipeline.Options{}, fixedNow)
		if err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if source.callCount != 1 {
			t.Errorf("fetch called %d times, want exactly one combined fetch", source.callCount)
		}
		if !source.gotEnd.Equal(now.Add(30 * 24 * time.Hour)) {
			t.Errorf("fetch end = %v, want now+30d", source.gotEnd)
		}
		if len(summarizer.gotWeekly) != 1 || summarizer.gotWeekly[0].ID != "w" {
			t.Errorf("weekly bucket = %v", summarizer.gotWeekly)
		}
		if len(summarizer.gotMonthly) != 1 || summarizer.gotMonthly[0].ID != "m" {
			t.Errorf("monthly bucket = %v", summarizer.gotMonthly)
		}
		if !sink.called || sink.gotText != "your week" {
			t.Errorf("sink got %q, called=%v", sink.gotText, sink.called)
		}
	})

	t.Run("weekly-only narrows the fetch window", func(t *testing.T) {
		source := &fakeSource{events: []*models.Event{upcoming("w", 2)}}
		summarizer := &fakeSummarizer{text: "s"}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink,
			pipeline.Options{WeeklyOnly: true}, fixedNow)
		if err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !source.gotEnd.Equal(now.Add(7 * 24 * time.Hour)) {
			t.Errorf("fetch end = %v, want now+7d", source.gotEnd)
		}
		if len(summarizer.gotMonthly) != 0 {
			t.Errorf("monthly bucket = %v, want empty", summarizer.gotMonthly)
		}
	})

	t.Run("dry run skips delivery", func(t *testing.T) {
		source := &fakeSource{events: []*models.Event{upcoming("w", 2)}}
		summarizer := &fakeSummarizer{text: "s"}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink,
			pipeline.Options{DryRun: true}, fixedNow)
		if err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if sink.called {
			t.Error("sink called during dry run")
		}
	})

	t.Run("no events ends run without summarizing", func(t *testing.T) {
		source := &fakeSource{}
		summarizer := &fakeSummarizer{}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink, pipeline.Options{}, fixedNow)
		if err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summarizer.called || sink.called {
			t.Error("later stages ran with no events")
		}
	})

	t.Run("source failure aborts", func(t *testing.T) {
		source := &fakeSource{err: fmt.Errorf("%w: 401", models.ErrSourceUnavailable)}
		summarizer := &fakeSummarizer{}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink, pipeline.Options{}, fixedNow)
		err := p.Run(context.Background())
		if !errors.Is(err, models.ErrSourceUnavailable) {
			t.Fatalf("Run() error = %v, want ErrSourceUnavailable", err)
		}
		if summarizer.called || sink.called {
			t.Error("later stages ran after source failure")
		}
	})

	t.Run("summarizer failure sends nothing", func(t *testing.T) {
		source := &fakeSource{events: []*models.Event{upcoming("w", 2)}}
		summarizer := &fakeSummarizer{err: fmt.Errorf("%w: quota", models.ErrRequestFailed)}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink, pipeline.Options{}, fixedNow)
		err := p.Run(context.Background())
		if !errors.Is(err, models.ErrRequestFailed) {
			t.Fatalf("Run() error = %v, want ErrRequestFailed", err)
		}
		if sink.called {
			t.Error("partial summary was sent")
		}
	})

	t.Run("delivery failure reported", func(t *testing.T) {
		source := &fakeSource{events: []*models.Event{upcoming("w", 2)}}
		summarizer := &fakeSummarizer{text: "s"}
		sink := &fakeSink{err: fmt.Errorf("%w: 400", models.ErrDeliveryFailed)}

		p := pipeline.New(discardLogger(), source, summarizer, sink, pipeline.Options{}, fixedNow)
		err := p.Run(context.Background())
		if !errors.Is(err, models.ErrDeliveryFailed) {
			t.Fatalf("Run() error = %v, want ErrDeliveryFailed", err)
		}
	})

	t.Run("malformed events do not abort", func(t *testing.T) {
		source := &fakeSource{events: []*models.Event{
			{ID: "bad", Response: models.ResponseAccepted},
			upcoming("good", 2),
		}}
		summarizer := &fakeSummarizer{text: "s"}
		sink := &fakeSink{}

		p := pipeline.New(discardLogger(), source, summarizer, sink, pipeline.Options{}, fixedNow)
		if err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(summarizer.gotWeekly) != 1 || summarizer.gotWeekly[0].ID != "good" {
			t.Errorf("weekly bucket = %v, want only the valid event", summarizer.gotWeekly)
		}
	})
}
