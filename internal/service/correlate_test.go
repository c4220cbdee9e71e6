package service

import (
	"context"
	"testing"
	"time"

	"geofeed-assist/internal/config"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedFixture = `<html><body>
<div id="ActivityFeedComponent">
  <div>
    <div class="activity-block-header"><h2>2024-01-05</h2></div>
  </div>
</div>
<ol class="activity-groups">
  <li>
    <ol class="activity-group">
      <li class="activity-item" data-logtypeid="2">
        <div class="activity-title"><h3><a class="font-bold">You</a></h3></div>
        <div class="activity-details"></div>
      </li>
      <li class="activity-item" data-logtypeid="4">
        <div class="activity-title"><h3><a class="font-bold">bob</a></h3></div>
        <div class="activity-details"></div>
      </li>
      <li class="activity-item" data-logtypeid="2">
        <div class="activity-title">
          <h3><a class="font-bold">carol</a></h3>
          <div class="inline-log">Already expanded log text</div>
        </div>
        <div class="activity-details"></div>
      </li>
    </ol>
  </li>
  <li>
    <h2>2024-01-04</h2>
    <ol class="activity-group">
      <li class="activity-item" data-logtypeid="2">
        <div class="activity-title"><h3><a class="font-bold">bob</a></h3></div>
        <div class="activity-details"></div>
      </li>
    </ol>
  </li>
</ol>
</body></html>`

func testCorrelator(t *testing.T, doc dom.Document) *Correlator {
	t.Helper()
	cfg := &config.Config{
		LinkBaseURL:  "https://coord.info",
		PollInterval: time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
	}
	return NewCorrelator(doc, cfg, zerolog.Nop())
}

func testIndex() domain.FoundIndex {
	return domain.FoundIndex{
		"2024-01-05": {
			{CacheCode: "GC1", Username: "alice"},
			{CacheCode: "GC2", Username: "alice"},
			{CacheCode: "GC3", Username: "dave"},
		},
		"2024-01-04": {
			{CacheCode: "GC4", Username: "bob"},
		},
	}
}

func testServerContext() *domain.ServerContext {
	return &domain.ServerContext{UserInfo: domain.UserInfo{ReferenceCode: "PR1", Username: "alice"}}
}

func TestCorrelator_Run(t *testing.T) {
	doc, err := dom.ParseHTML(feedFixture)
	require.NoError(t, err)

	c := testCorrelator(t, doc)
	require.NoError(t, c.Run(context.Background(), testIndex(), testServerContext()))

	t.Run("aliased item gets the context user's caches", func(t *testing.T) {
		panels, err := doc.Select("details.full-list-of-found-caches")
		require.NoError(t, err)
		require.Len(t, panels, 2)

		first := panels[0]
		assert.Equal(t, "alice", first.Attr("data-username"))

		links, err := first.Select("li > a")
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "GC1", links[0].Text())
		assert.Equal(t, "fullFoundCacheList_GC1", links[0].Attr("name"))
		assert.Equal(t, "https://coord.info/GC1", links[0].Attr("href"))
		assert.Equal(t, "GC2", links[1].Text())
	})

	t.Run("later group uses its own date header", func(t *testing.T) {
		panels, err := doc.Select("details.full-list-of-found-caches")
		require.NoError(t, err)

		second := panels[1]
		assert.Equal(t, "bob", second.Attr("data-username"))

		links, err := second.Select("li > a")
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "GC4", links[0].Text())
	})

	t.Run("non-found and expanded items stay untouched", func(t *testing.T) {
		items, err := doc.Select("li.activity-item")
		require.NoError(t, err)
		require.Len(t, items, 4)

		for _, idx := range []int{1, 2} {
			panels, err := items[idx].Select("details.full-list-of-found-caches")
			require.NoError(t, err)
			assert.Empty(t, panels)
		}
	})
}

func TestCorrelator_RunIsIdempotent(t *testing.T) {
	doc, err := dom.ParseHTML(feedFixture)
	require.NoError(t, err)

	c := testCorrelator(t, doc)
	require.NoError(t, c.Run(context.Background(), testIndex(), testServerContext()))
	require.NoError(t, c.Run(context.Background(), testIndex(), testServerContext()))

	items, err := doc.Select("li.activity-item")
	require.NoError(t, err)

	panels, err := items[0].Select("details.full-list-of-found-caches")
	require.NoError(t, err)
	assert.Len(t, panels, 1, "re-running must replace the panel, not stack another")
}

func TestCorrelator_RunTimesOutOnEmptyPage(t *testing.T) {
	doc, err := dom.ParseHTML(`<html><body><p>loading</p></body></html>`)
	require.NoError(t, err)

	c := testCorrelator(t, doc)
	err = c.Run(context.Background(), testIndex(), testServerContext())
	assert.ErrorIs(t, err, ErrRenderTimeout)
}

func TestCorrelator_RunHonorsCancellation(t *testing.T) {
	doc, err := dom.ParseHTML(`<html><body></body></html>`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testCorrelator(t, doc)
	err = c.Run(ctx, testIndex(), testServerContext())
	assert.ErrorIs(t, err, context.Canceled)
}
