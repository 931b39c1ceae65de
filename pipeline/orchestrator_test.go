package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festival-scraper/models"
	"festival-scraper/scraper"
	"festival-scraper/sources"
	"festival-scraper/utils"
)

func fixedTransport(f scraper.Fetcher) Transport {
	return func(sources.Entry) (scraper.Fetcher, scraper.Browser) { return f, nil }
}

func testOptions() Options {
	return Options{Concurrency: 2, BatchSize: 10, WriteRetry: &utils.RetryConfig{MaxAttempts: 1}}
}

func TestOrchestratorIsolatesFailingSource(t *testing.T) {
	healthy := festivalSite(t)
	broken := festivalSite(t, "/agenda")
	store := openStore(t)

	entries := []sources.Entry{
		{Adapter: testAdapter("alpha", healthy.URL), Enabled: true},
		{Adapter: testAdapter("beta", broken.URL), Enabled: true},
	}
	o := NewOrchestrator(store, store, nil, nil, fixedTransport(httpFetcher()), testOptions(), nil)
	results := o.Run(context.Background(), entries)

	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Source)
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Equal(t, "beta", results[1].Source)
	assert.Equal(t, models.StatusFailed, results[1].Status)
	assert.Equal(t, results[0].RunID, results[1].RunID)
	assert.NotEmpty(t, results[0].RunID)

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestOrchestratorEntryMaxPagesOverrides(t *testing.T) {
	srv := festivalSite(t)
	fetcher := httpFetcher()
	opts := testOptions()
	opts.MaxPages = 5

	entries := []sources.Entry{{Adapter: testAdapter(testSource, srv.URL), MaxPages: 1}}
	results := NewOrchestrator(openStore(t), nil, nil, nil, fixedTransport(fetcher), opts, nil).
		Run(context.Background(), entries)

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].PagesProcessed)
	assert.Len(t, fetcher.listingURLs(), 1)
}

func TestOrchestratorResumesAfterLastPage(t *testing.T) {
	srv := festivalSite(t)
	store := openStore(t)
	cp, err := LoadCheckpoint(filepath.Join(t.TempDir(), "checkpoint.json"))
	require.NoError(t, err)
	entries := []sources.Entry{{Adapter: testAdapter(testSource, srv.URL), Enabled: true}}

	// First run is interrupted while asking for page two.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := httpFetcher()
	first.intercept = func(u string) error {
		if strings.Contains(u, "page=2") {
			cancel()
			return &models.FetchError{URL: u, Err: context.Canceled}
		}
		return nil
	}
	results := NewOrchestrator(store, nil, nil, cp, fixedTransport(first), testOptions(), nil).Run(ctx, entries)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusPartial, results[0].Status)

	saved, ok := cp.Get(testSource)
	require.True(t, ok)
	assert.Equal(t, 1, saved.LastPage)
	assert.Equal(t, models.StatusPartial, saved.Status)

	// The resumed run starts at page two and completes the walk.
	second := httpFetcher()
	opts := testOptions()
	opts.Resume = true
	results = NewOrchestrator(store, nil, nil, cp, fixedTransport(second), opts, nil).Run(context.Background(), entries)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	require.NotEmpty(t, second.listingURLs())
	assert.Contains(t, second.listingURLs()[0], "page=2")

	n, err := store.Count(context.Background(), testSource)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Succeeded sources are skipped on the next resume.
	third := httpFetcher()
	results = NewOrchestrator(store, nil, nil, cp, fixedTransport(third), opts, nil).Run(context.Background(), entries)
	assert.Empty(t, results)
	assert.Empty(t, third.urls)
}

func TestOrchestratorFreshRunResetsCheckpoint(t *testing.T) {
	srv := festivalSite(t)
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)
	require.NoError(t, cp.MarkDone("old", testSource, models.StatusSuccess, true))

	fetcher := httpFetcher()
	entries := []sources.Entry{{Adapter: testAdapter(testSource, srv.URL), Enabled: true}}
	results := NewOrchestrator(openStore(t), nil, nil, cp, fixedTransport(fetcher), testOptions(), nil).
		Run(context.Background(), entries)

	require.Len(t, results, 1)
	assert.NotEmpty(t, fetcher.listingURLs())
	saved, ok := cp.Get(testSource)
	require.True(t, ok)
	assert.Equal(t, results[0].RunID, saved.RunID)
}

func TestOrchestratorReportsSourcesReachedAfterCancel(t *testing.T) {
	srv := festivalSite(t)
	store := openStore(t)
	fetcher := httpFetcher()
	entries := []sources.Entry{
		{Adapter: testAdapter("alpha", srv.URL), Enabled: true},
		{Adapter: testAdapter("beta", srv.URL), Enabled: true},
		{Adapter: testAdapter("gamma", srv.URL), Enabled: true},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewOrchestrator(store, store, nil, nil, fixedTransport(fetcher), testOptions(), nil).Run(ctx, entries)

	require.Len(t, results, 3)
	for i, name := range []string{"alpha", "beta", "gamma"} {
		assert.Equal(t, name, results[i].Source)
		assert.Equal(t, models.StatePartial, results[i].State)
		assert.Equal(t, models.StatusPartial, results[i].Status)
		assert.Zero(t, results[i].PagesProcessed)
	}
	assert.Empty(t, fetcher.urls)

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
