// Package crawler walks chains of paginated pages and saves one asset per page.
//
// Each configured entry names a start URL and a set of selector expressions.
// The Engine follows an entry's next-page links, downloading the asset found
// on every page and checkpointing the page URL into the entry store as soon
// as the asset is on disk. A later run resumes from the last checkpointed
// page and continues the file numbering where the output directory left off.
//
// The Scheduler runs entries one after another in store order. A failure
// ends only the entry it happened in unless strict mode is enabled.
//
// Usage:
//
//	rc := &crawler.RunContext{
//	    OutputDir: "output",
//	    Store:     store,
//	    Fetcher:   client,
//	    Writer:    downloader.NewAssetWriter(client, log),
//	    Delay:     ratelimit.NewRandomDelay(time.Second, 3*time.Second),
//	    Logger:    log,
//	}
//
//	summary, err := crawler.NewScheduler(rc).Run(ctx)
//	if err != nil {
//	    // one or more entries failed; summary has the per-entry results
//	}
//
// All components are reached through interfaces, so the traversal can be
// exercised against in-memory fakes.
package crawler
