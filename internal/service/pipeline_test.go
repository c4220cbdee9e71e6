package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"geofeed-assist/internal/api"
	"geofeed-assist/internal/config"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticReader struct {
	sc  *domain.ServerContext
	err error
}

func (r staticReader) ServerContext(context.Context) (*domain.ServerContext, error) {
	return r.sc, r.err
}

func newTestPipeline(t *testing.T, doc dom.Document, reader ContextReader, lb LeaderboardAPI, enrich EnrichmentAPI, decorate DecorateFunc) *Pipeline {
	t.Helper()
	cfg := &config.Config{
		LinkBaseURL:  "https://coord.info",
		PollInterval: time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
	}
	log := zerolog.Nop()
	return NewPipeline(
		reader,
		NewLeaderboardService(lb, log),
		NewCorrelator(doc, cfg, log),
		NewEnricher(enrich, doc, decorate, log),
		log,
	)
}

func TestPipeline_Run(t *testing.T) {
	t.Run("full pass augments the feed", func(t *testing.T) {
		doc, err := dom.ParseHTML(feedFixture)
		require.NoError(t, err)

		lb := &fakeLeaderboardAPI{pages: map[int]*api.AccountsPage{
			0: {Accounts: []api.Account{{
				Username: "alice",
				Activities: []api.Activity{
					{ActivityType: api.ActivityFoundIt, LogDateTime: "2024-01-05T10:00:00", LogObjectCode: "GC1"},
				},
			}}},
		}}
		enrich := &fakeEnrichmentAPI{
			names:   map[string][]api.TypeaheadMatch{"GC1": {{GeocacheName: "Hidden Bridge"}}},
			details: map[string]*api.GeocacheDetail{"GC1": {Name: "Hidden Bridge", UserFound: true}},
		}
		decorate := func(el dom.Element, detail *api.GeocacheDetail, status domain.FoundStatus) {
			el.SetAttr("data-status", status.String())
		}
		reader := staticReader{sc: &domain.ServerContext{
			UserInfo: domain.UserInfo{ReferenceCode: "PR1", Username: "alice"},
		}}

		p := newTestPipeline(t, doc, reader, lb, enrich, decorate)
		require.NoError(t, p.Run(context.Background()))

		link, err := doc.SelectOne(`a[name="fullFoundCacheList_GC1"]`)
		require.NoError(t, err)
		assert.Equal(t, "Hidden Bridge", link.Text())
		assert.Equal(t, "found", link.Attr("data-status"))
	})

	t.Run("ineligible context deactivates quietly", func(t *testing.T) {
		doc, err := dom.ParseHTML(feedFixture)
		require.NoError(t, err)

		lb := &fakeLeaderboardAPI{}
		reader := staticReader{sc: &domain.ServerContext{
			UserInfo: domain.UserInfo{ReferenceCode: "GC1", Username: "alice"},
		}}

		p := newTestPipeline(t, doc, reader, lb, &fakeEnrichmentAPI{}, nil)
		require.NoError(t, p.Run(context.Background()))
		assert.Empty(t, lb.calls, "an ineligible user must trigger no API traffic")
	})

	t.Run("unreadable context deactivates quietly", func(t *testing.T) {
		doc, err := dom.ParseHTML(feedFixture)
		require.NoError(t, err)

		lb := &fakeLeaderboardAPI{}
		reader := staticReader{err: errors.New("no serverParameters")}

		p := newTestPipeline(t, doc, reader, lb, &fakeEnrichmentAPI{}, nil)
		require.NoError(t, p.Run(context.Background()))
		assert.Empty(t, lb.calls)
	})

	t.Run("no linkable codes skips enrichment", func(t *testing.T) {
		doc, err := dom.ParseHTML(feedFixture)
		require.NoError(t, err)

		// Lab cache finds count toward presence but produce no codes.
		lb := &fakeLeaderboardAPI{pages: map[int]*api.AccountsPage{
			0: {Accounts: []api.Account{{
				Username: "alice",
				Activities: []api.Activity{
					{ActivityType: api.ActivityFoundLabCache, LogDateTime: "2024-01-05T10:00:00"},
				},
			}}},
		}}
		enrich := &fakeEnrichmentAPI{}

		reader := staticReader{sc: &domain.ServerContext{
			UserInfo: domain.UserInfo{ReferenceCode: "PR1", Username: "alice"},
		}}

		p := newTestPipeline(t, doc, reader, lb, enrich, nil)
		require.NoError(t, p.Run(context.Background()))
		assert.Empty(t, enrich.detailCalls)

		// The panel still renders, just without links.
		_, err = doc.SelectOne("details.full-list-of-found-caches")
		assert.NoError(t, err)
	})
}
