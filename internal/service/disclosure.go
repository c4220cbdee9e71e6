package service

import (
	"context"
	"errors"
	"sync"

	"geofeed-assist/internal/constants"

	"github.com/rs/zerolog"
)

// ErrLogNotFound reports that the logbook was exhausted without finding
// the user's found log.
var ErrLogNotFound = errors.New("found log not present in logbook")

type logSearchState int

const (
	logIdle logSearchState = iota
	logFetching
	logResolved
	logFailed
)

// LogDisclosure resolves the found log for one (cache, user) pair at most
// once per page load. The first toggle triggers the logbook search; later
// toggles reuse the cached text or error. The mutex guards only the state
// fields, never the search itself, so a toggle landing mid-search observes
// logFetching and waits instead of blocking the lock.
type LogDisclosure struct {
	mu    sync.Mutex
	state logSearchState
	text  string
	err   error
	done  chan struct{}

	code     string
	username string
	api      EnrichmentAPI
	logger   zerolog.Logger
}

func newLogDisclosure(client EnrichmentAPI, logger zerolog.Logger, code, username string) *LogDisclosure {
	return &LogDisclosure{api: client, logger: logger, code: code, username: username}
}

func (d *LogDisclosure) Resolve(ctx context.Context) (string, error) {
	d.mu.Lock()
	for {
		switch d.state {
		case logResolved:
			d.mu.Unlock()
			return d.text, nil

		case logFailed:
			d.mu.Unlock()
			return "", d.err

		case logFetching:
			done := d.done
			d.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			d.mu.Lock()

		case logIdle:
			d.state = logFetching
			d.done = make(chan struct{})
			d.mu.Unlock()

			text, err := d.search(ctx)

			d.mu.Lock()
			if err != nil {
				d.state = logFailed
				d.err = err
				d.logger.Warn().Err(err).
					Str("code", d.code).
					Str("username", d.username).
					Msg("found log search failed")
			} else {
				d.state = logResolved
				d.text = text
			}
			close(d.done)
			d.mu.Unlock()

			if err != nil {
				return "", err
			}
			return text, nil
		}
	}
}

// search extracts the logbook token from the cache page, then walks the
// logbook pages until the user's found log turns up. Page 1 reports the
// total page count, which bounds the walk.
func (d *LogDisclosure) search(ctx context.Context) (string, error) {
	token, err := d.api.CacheLogbookToken(ctx, d.code)
	if err != nil {
		return "", err
	}

	totalPages := 1
	for idx := 1; idx <= totalPages; idx++ {
		page, err := d.api.LogbookPage(ctx, token, idx, constants.LogbookPageSize)
		if err != nil {
			return "", err
		}
		if idx == 1 && page.PageInfo.TotalPages > 0 {
			totalPages = page.PageInfo.TotalPages
		}
		for _, record := range page.Data {
			if record.LogTypeID == constants.FoundLogTypeID && record.Username == d.username {
				return record.Text, nil
			}
		}
	}
	return "", ErrLogNotFound
}
