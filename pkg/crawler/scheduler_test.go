package crawler

import (
	"context"
	"errors"
	"testing"

	errs "chaincrawl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoEntryYAML = `broken:
  url: https://broken.example.com/1
  next_page: //a[@rel="next"]/@href
  image: //img[@id="main"]/@src
  saved_urls: []
  skip: []
comic:
  url: https://example.com/comic/1
  next_page: //a[@rel="next"]/@href
  title: //h1
  image: //img[@id="main"]/@src
  saved_urls: []
  skip: []
`

func TestSchedulerRunsEntriesInStoreOrder(t *testing.T) {
	pages := threePageSite()
	pages["https://broken.example.com/1"] = page("B", "https://cdn.example.com/b.png", "")
	h := newHarness(t, twoEntryYAML, pages)

	summary, err := NewScheduler(h.rc).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Entries, 2)
	assert.Equal(t, "broken", summary.Entries[0].Name)
	assert.Equal(t, "comic", summary.Entries[1].Name)
	assert.Equal(t, 4, summary.Saved())
	assert.Equal(t, 0, summary.Failed())

	starts := h.observer.kinds("start")
	require.Len(t, starts, 2)
	assert.Equal(t, "broken", starts[0].entry)
}

func TestSchedulerIsolatesEntryFailures(t *testing.T) {
	// broken has no pages, its fetch fails
	h := newHarness(t, twoEntryYAML, threePageSite())

	summary, err := NewScheduler(h.rc).Run(context.Background())
	require.Error(t, err)

	assert.True(t, errs.Is(err, errs.ErrorTypeFetch))
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, 3, summary.Entries[1].Result.Saved, "later entry still runs")
	assert.True(t, h.log.HasMessage("Entry failed"))
}

func TestSchedulerStrictStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t, twoEntryYAML, threePageSite())
	h.rc.Strict = true

	summary, err := NewScheduler(h.rc).Run(context.Background())
	require.Error(t, err)

	assert.Len(t, summary.Entries, 1)
	assert.NotContains(t, h.fetcher.urls(), "https://example.com/comic/1")
}

func TestSchedulerNamedEntries(t *testing.T) {
	h := newHarness(t, twoEntryYAML, threePageSite())

	summary, err := NewScheduler(h.rc).Run(context.Background(), "comic")
	require.NoError(t, err)

	require.Len(t, summary.Entries, 1)
	assert.Equal(t, "comic", summary.Entries[0].Name)
}

func TestSchedulerUnknownEntry(t *testing.T) {
	h := newHarness(t, twoEntryYAML, threePageSite())

	_, err := NewScheduler(h.rc).Run(context.Background(), "comic", "missing")
	require.Error(t, err)

	assert.Equal(t, errs.ErrorTypeEntryNotFound, errs.TypeOf(err))
	assert.Contains(t, err.Error(), "broken, comic")
	assert.Empty(t, h.fetcher.urls(), "nothing fetched before names are resolved")
}

func TestSchedulerValidatesBeforeNetwork(t *testing.T) {
	yaml := `first:
  url: https://example.com/comic/1
  image: //img/@src
second:
  next_page: //a/@href
third:
  url: https://example.com/x
`
	h := newHarness(t, yaml, threePageSite())

	_, err := NewScheduler(h.rc).Run(context.Background())
	require.Error(t, err)

	assert.True(t, errs.Is(err, errs.ErrorTypeInvalidEntry))
	assert.Contains(t, err.Error(), "second")
	assert.Contains(t, err.Error(), "url is required")
	assert.Contains(t, err.Error(), "third")
	assert.Empty(t, h.fetcher.urls())
}

func TestSchedulerCancellation(t *testing.T) {
	pages := threePageSite()
	pages["https://broken.example.com/1"] = page("B", "https://cdn.example.com/b.png", "")
	h := newHarness(t, twoEntryYAML, pages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := NewScheduler(h.rc).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, summary.Entries)
	assert.Empty(t, h.fetcher.urls())
}

func TestSummaryCounts(t *testing.T) {
	s := Summary{Entries: []EntryOutcome{
		{Name: "a", Result: Result{Saved: 2}},
		{Name: "b", Result: Result{Saved: 1}, Err: errors.New("x")},
	}}
	assert.Equal(t, 3, s.Saved())
	assert.Equal(t, 1, s.Failed())
}
