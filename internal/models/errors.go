package models

import "errors"

// Pipeline error classes. Fatal classes abort the run with a nonzero exit;
// ErrDataValidation is non-fatal and only ever surfaces as a skip count.
var (
	// ErrConfiguration means a required credential or setting is missing.
	// Raised before any network call is made.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceUnavailable means the calendar fetch failed (auth or network).
	ErrSourceUnavailable = errors.New("event source unavailable")

	// ErrDataValidation means a single event was malformed. The event is
	// skipped and counted; the run continues.
	ErrDataValidation = errors.New("event validation failed")

	// ErrRequestFailed means the summarization call failed. No partial
	// summary is ever sent.
	ErrRequestFailed = errors.New("summary request failed")

	// ErrDeliveryFailed means the message send failed.
	ErrDeliveryFailed = errors.New("message delivery failed")
)
