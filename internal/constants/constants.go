package constants

import "time"

const (
	LeaderboardPageSize = 100
	LogbookPageSize     = 100
)

const (
	// DetailMaxRetries is the retry budget per geocache detail lookup,
	// on top of the initial attempt.
	DetailMaxRetries   = 2
	DetailRetryDelay   = 100 * time.Millisecond
	RenderPollInterval = 500 * time.Millisecond
	RenderPollTimeout  = 60 * time.Second
)

const (
	ExternalAPITimeout = 10 * time.Second
	PipelineTimeout    = 5 * time.Minute
	// LogSearchTimeout bounds one on-toggle logbook walk. Toggles can
	// arrive long after the pipeline run context has expired, so the
	// search never runs under it.
	LogSearchTimeout = 1 * time.Minute
)

const (
	// FoundLogTypeID is the log type id of a "Found it" log, both as the
	// data-logtypeid attribute on rendered items and in logbook records.
	FoundLogTypeID   = 2
	FoundLogTypeAttr = "2"
)
