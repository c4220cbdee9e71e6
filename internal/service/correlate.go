package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"geofeed-assist/internal/config"
	"geofeed-assist/internal/constants"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/domain"

	"github.com/rs/zerolog"
)

// ErrRenderTimeout reports that an awaited page substructure never
// rendered within the polling budget.
var ErrRenderTimeout = errors.New("render wait timed out")

const (
	selActivityGroups  = "ol.activity-groups > li"
	selNearestDateHead = "div#ActivityFeedComponent > div > div.activity-block-header h2"
	selGroupHeader     = "h2"
	selActivityItems   = "ol.activity-group > li.activity-item"
	selInlineLog       = "h3 + div"
	selItemUsername    = "h3 a.font-bold"
	selActivityDetails = "div.activity-details"
	selFoundListPanel  = "details.full-list-of-found-caches"
)

type correlatorState int

const (
	stateAwaitingFeed correlatorState = iota
	stateAwaitingDateHeader
	stateCorrelating
	stateDone
)

// Correlator walks the rendered activity groups and attaches a rebuildable
// found-list panel to every eligible log item, matching rendered usernames
// against the found index.
type Correlator struct {
	doc          dom.Document
	logger       zerolog.Logger
	linkBaseURL  string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewCorrelator(doc dom.Document, cfg *config.Config, logger zerolog.Logger) *Correlator {
	return &Correlator{
		doc:          doc,
		logger:       logger,
		linkBaseURL:  cfg.LinkBaseURL,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

// Run drives the correlation state machine. The page renders asynchronously
// and exposes no completion signal, so the two await states poll until
// their substructure appears; a page that never renders it surfaces
// ErrRenderTimeout instead of hanging forever.
func (c *Correlator) Run(ctx context.Context, index domain.FoundIndex, sc *domain.ServerContext) error {
	var (
		state       = stateAwaitingFeed
		groups      []dom.Element
		nearestDate string
	)

	for state != stateDone {
		switch state {
		case stateAwaitingFeed:
			found, err := await(ctx, c, "activity feed", func() ([]dom.Element, bool) {
				els, err := c.doc.Select(selActivityGroups)
				if err != nil || len(els) == 0 {
					return nil, false
				}
				return els, true
			})
			if err != nil {
				return err
			}
			groups = found
			state = stateAwaitingDateHeader

		case stateAwaitingDateHeader:
			// The first group renders without its own header; its
			// date arrives later in a separate header block.
			head, err := await(ctx, c, "date header", func() (dom.Element, bool) {
				el, err := c.doc.SelectOne(selNearestDateHead)
				if err != nil {
					return nil, false
				}
				return el, true
			})
			if err != nil {
				return err
			}
			nearestDate = strings.TrimSpace(head.Text())
			state = stateCorrelating

		case stateCorrelating:
			c.correlate(groups, nearestDate, index, sc)
			state = stateDone
		}
	}

	c.logger.Debug().Int("group_count", len(groups)).Msg("correlation pass complete")
	return nil
}

// await polls probe at the configured interval until it reports ready, the
// timeout fires, or the context is cancelled.
func await[T any](ctx context.Context, c *Correlator, what string, probe func() (T, bool)) (T, error) {
	var zero T

	deadline := time.NewTimer(c.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if v, ok := probe(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-deadline.C:
			return zero, fmt.Errorf("%s: %w", what, ErrRenderTimeout)
		case <-ticker.C:
		}
	}
}

func (c *Correlator) correlate(groups []dom.Element, nearestDate string, index domain.FoundIndex, sc *domain.ServerContext) {
	for i, group := range groups {
		day := nearestDate
		if i > 0 {
			head, err := group.SelectOne(selGroupHeader)
			if err != nil {
				c.logger.Warn().Int("group", i).Msg("activity group has no date header, skipping")
				continue
			}
			day = strings.TrimSpace(head.Text())
		}

		items, err := group.Select(selActivityItems)
		if err != nil {
			continue
		}
		for _, item := range items {
			c.reconcileItem(item, day, index, sc)
		}
	}
}

// reconcileItem attaches the found-list panel to one rendered log item.
// Re-running against an unchanged page replaces the previous panel rather
// than stacking another one.
func (c *Correlator) reconcileItem(item dom.Element, day string, index domain.FoundIndex, sc *domain.ServerContext) {
	if item.Attr("data-logtypeid") != constants.FoundLogTypeAttr {
		return
	}
	// An adjacent inline log body means the item is already expanded and
	// not a candidate; only wrapped items get a panel.
	if inline, err := item.Select(selInlineLog); err != nil || len(inline) > 0 {
		return
	}
	nameEl, err := item.SelectOne(selItemUsername)
	if err != nil {
		return
	}
	username := sc.ResolveAlias(strings.TrimSpace(nameEl.Text()))

	details, err := item.SelectOne(selActivityDetails)
	if err != nil {
		c.logger.Debug().Str("username", username).Str("day", day).Msg("log item has no details container")
		return
	}
	if prev, err := details.SelectOne(selFoundListPanel); err == nil {
		prev.Remove()
	}

	codes := index.FoundFor(day, username)
	if err := details.AppendHTML(c.foundListPanelHTML(username, codes)); err != nil {
		c.logger.Warn().Err(err).Str("username", username).Str("day", day).Msg("failed to attach found list panel")
	}
}

// foundListPanelHTML renders the collapsible panel listing every linkable
// cache the user found that day. The resolved username rides along as an
// attribute so the log lookup stage doesn't have to re-derive it.
func (c *Correlator) foundListPanelHTML(username string, codes []string) string {
	var b strings.Builder
	b.WriteString(`<details class="full-list-of-found-caches" data-username="`)
	b.WriteString(html.EscapeString(username))
	b.WriteString(`"><summary>Full List of Found Caches</summary><ol>`)
	for _, code := range codes {
		esc := html.EscapeString(code)
		b.WriteString(`<li><a name="fullFoundCacheList_`)
		b.WriteString(esc)
		b.WriteString(`" href="`)
		b.WriteString(html.EscapeString(c.linkBaseURL))
		b.WriteString(`/`)
		b.WriteString(esc)
		b.WriteString(`">`)
		b.WriteString(esc)
		b.WriteString(`</a></li>`)
	}
	b.WriteString(`</ol></details>`)
	return b.String()
}
