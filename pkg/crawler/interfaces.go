package crawler

import (
	"context"
	"time"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/checkpoint"
	"chaincrawl/pkg/metadata"
	"chaincrawl/pkg/selector"
)

// PageFetcher retrieves and parses a page
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string, render bool) (*selector.Document, error)
}

// Extractor evaluates a selector expression against a page. No match is an
// empty result, not an error; errors are reserved for invalid expressions.
type Extractor interface {
	Extract(doc *selector.Document, expr string) ([]string, error)
}

// ConfigStore holds the entries and their saved URLs
type ConfigStore interface {
	Names() []string
	Get(name string) (checkpoint.Entry, error)
	Validate(names ...string) error
	// MarkPending persists the file a page's asset is about to be written to
	MarkPending(name, url, file string) error
	RecordSaved(name, url string) error
}

// AssetWriter persists assets into an entry's output directory
type AssetWriter interface {
	NextCounter(dir string) (int, error)
	FileName(counter int, title, imageURL string) string
	Save(ctx context.Context, dir string, counter int, title, imageURL string) (downloader.Result, error)
	Adopt(dir, file string) (downloader.Result, bool)
	SaveMetadata(dir string, meta *metadata.PageMetadata) (string, error)
}

// Pauser waits between requests
type Pauser interface {
	Pause(ctx context.Context) (time.Duration, error)
}

// Observer receives progress events. Calls happen on the crawling goroutine.
type Observer interface {
	EntryStarted(entry string)
	PageVisited(entry, pageURL string)
	PageSaved(entry, pageURL string, res downloader.Result)
	PageSkipped(entry, pageURL, reason string)
	EntryFinished(entry string, res Result, err error)
}

type nopObserver struct{}

func (nopObserver) EntryStarted(string)                         {}
func (nopObserver) PageVisited(string, string)                  {}
func (nopObserver) PageSaved(string, string, downloader.Result) {}
func (nopObserver) PageSkipped(string, string, string)          {}
func (nopObserver) EntryFinished(string, Result, error)         {}

type noDelay struct{}

func (noDelay) Pause(ctx context.Context) (time.Duration, error) { return 0, ctx.Err() }
