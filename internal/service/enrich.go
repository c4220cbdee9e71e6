package service

import (
	"context"
	"fmt"

	"geofeed-assist/internal/api"
	"geofeed-assist/internal/constants"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// EnrichmentAPI is the slice of the geocaching client the enricher needs.
type EnrichmentAPI interface {
	TypeaheadMatches(ctx context.Context, query string) ([]api.TypeaheadMatch, error)
	GeocacheDetail(ctx context.Context, code string) (*api.GeocacheDetail, error)
	CacheLogbookToken(ctx context.Context, code string) (string, error)
	LogbookPage(ctx context.Context, token string, idx, num int) (*api.LogbookPage, error)
}

// DecorateFunc composes the visual metadata for one rendered cache link.
// It is supplied by the caller and treated as a pure callback.
type DecorateFunc func(el dom.Element, detail *api.GeocacheDetail, status domain.FoundStatus)

// Enricher runs the three enrichment stages over the de-duplicated cache
// codes: parallel name lookup, sequential detail lookup with retry, and a
// deferred per-item found-log search armed on each decorated link.
type Enricher struct {
	api      EnrichmentAPI
	doc      dom.Document
	decorate DecorateFunc
	logger   zerolog.Logger
}

func NewEnricher(client EnrichmentAPI, doc dom.Document, decorate DecorateFunc, logger zerolog.Logger) *Enricher {
	return &Enricher{api: client, doc: doc, decorate: decorate, logger: logger}
}

// ResolveNames looks up display names for every cache code in parallel and
// rewrites each rendered link's label. A failed lookup leaves that link
// showing the raw code and never cancels the sibling lookups.
func (e *Enricher) ResolveNames(ctx context.Context, codes []string) {
	names := make([]string, len(codes))

	g, gCtx := errgroup.WithContext(ctx)
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			matches, err := e.api.TypeaheadMatches(gCtx, code)
			if err != nil {
				e.logger.Warn().Err(err).Str("code", code).Msg("name lookup failed")
				return nil
			}
			if len(matches) > 0 {
				names[i] = matches[0].GeocacheName
			}
			return nil
		})
	}
	// Lookup goroutines swallow their own failures.
	_ = g.Wait()

	for i, code := range codes {
		if names[i] == "" {
			continue
		}
		e.setLinkText(code, names[i])
	}
}

func (e *Enricher) setLinkText(code, name string) {
	links, err := e.doc.Select(cacheLinkSelector(code))
	if err != nil {
		return
	}
	for _, link := range links {
		link.SetText(name)
	}
}

func cacheLinkSelector(code string) string {
	return fmt.Sprintf(`a[name=%q]`, "fullFoundCacheList_"+code)
}

// ResolveDetails fetches full metadata per code, strictly in sequence to
// cap burst load on the detail endpoint. Each code gets a bounded retry
// budget; exhaustion leaves that code undecorated and moves on.
func (e *Enricher) ResolveDetails(ctx context.Context, codes []string, self string) {
	for _, code := range codes {
		detail, err := e.fetchDetail(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn().Err(err).Str("code", code).Msg("detail lookup exhausted, leaving item undecorated")
			continue
		}
		e.decorateOccurrences(code, detail, self)
	}
}

func (e *Enricher) fetchDetail(ctx context.Context, code string) (*api.GeocacheDetail, error) {
	var detail *api.GeocacheDetail

	backoff := retry.WithMaxRetries(constants.DetailMaxRetries, retry.NewConstant(constants.DetailRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		d, err := e.api.GeocacheDetail(ctx, code)
		if err != nil {
			return retry.RetryableError(err)
		}
		detail = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// StatusFor picks the status icon for a cache: owned takes precedence over
// a found or DNF log, which in turn beat solved-but-not-found.
func StatusFor(detail *api.GeocacheDetail, self string) domain.FoundStatus {
	switch {
	case self != "" && detail.Owner.Username == self:
		return domain.StatusOwned
	case detail.UserFound:
		return domain.StatusFound
	case detail.UserDidNotFind:
		return domain.StatusDidNotFind
	case detail.Solved:
		return domain.StatusSolved
	default:
		return domain.StatusNone
	}
}

// decorateOccurrences decorates every rendered link for code and arms its
// lazy found-log control. Panels carry the resolved username, so each
// occurrence knows whose log to search for.
func (e *Enricher) decorateOccurrences(code string, detail *api.GeocacheDetail, self string) {
	status := StatusFor(detail, self)

	panels, err := e.doc.Select(selFoundListPanel)
	if err != nil {
		return
	}
	for _, panel := range panels {
		username := panel.Attr("data-username")
		links, err := panel.Select(cacheLinkSelector(code))
		if err != nil {
			continue
		}
		for _, link := range links {
			if e.decorate != nil {
				e.decorate(link, detail, status)
			}
			e.attachLogControl(link, code, username)
		}
	}
}

const (
	logControlClass = "found-log"
	logTextClass    = "found-log-text"
)

// attachLogControl appends the collapsible found-log element behind a link
// and arms its toggle. The logbook search itself is deferred until the
// first time the user opens it, which can be long after the pipeline run
// context has expired, so each search gets its own deadline.
func (e *Enricher) attachLogControl(link dom.Element, code, username string) {
	item, err := link.Parent()
	if err != nil {
		return
	}
	if prev, err := item.SelectOne("details." + logControlClass); err == nil {
		prev.Remove()
	}

	markup := `<details class="` + logControlClass + `"><summary>Found log</summary><p class="` + logTextClass + `"></p></details>`
	if err := item.AppendHTML(markup); err != nil {
		return
	}
	control, err := item.SelectOne("details." + logControlClass)
	if err != nil {
		return
	}

	disclosure := newLogDisclosure(e.api, e.logger, code, username)
	err = control.OnToggle(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.LogSearchTimeout)
		defer cancel()

		text, err := disclosure.Resolve(ctx)
		target, terr := control.SelectOne("p." + logTextClass)
		if terr != nil {
			return
		}
		if err != nil {
			target.SetText("Couldn't load the found log: " + err.Error())
			return
		}
		target.SetText(text)
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("code", code).Msg("failed to arm found log control")
	}
}
