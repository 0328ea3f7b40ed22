package crawler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/checkpoint"
	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/selector"
)

const entryYAML = `comic:
  url: https://example.com/comic/1
  next_page: //a[@rel="next"]/@href
  title: //h1
  image: //img[@id="main"]/@src
  text: //p[@class="note"]
  saved_urls: []
  skip: []
`

// page renders a minimal comic page. Empty arguments leave the element out.
func page(title, image, next string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>", title)
	}
	if image != "" {
		fmt.Fprintf(&b, `<img id="main" src="%s">`, image)
	}
	b.WriteString(`<p class="note">first note</p><p class="note">second note</p>`)
	if next != "" {
		fmt.Fprintf(&b, `<a rel="next" href="%s">Next</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// threePageSite is a chain mixing relative and absolute links. The last
// page has no title.
func threePageSite() map[string]string {
	return map[string]string{
		"https://example.com/comic/1": page("One", "https://cdn.example.com/1.png", "/comic/2"),
		"https://example.com/comic/2": page("Two", "/img/2.png", "https://example.com/comic/3"),
		"https://example.com/comic/3": page("", "https://cdn.example.com/3.jpg", ""),
	}
}

type fetchCall struct {
	url    string
	render bool
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errors map[string]error
	calls  []fetchCall
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, errors: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string, render bool) (*selector.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{pageURL, render})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errors[pageURL]; ok {
		return nil, errs.Wrap(errs.ErrorTypeFetch, err, "page fetch failed").WithURL(pageURL)
	}
	body, ok := f.pages[pageURL]
	if !ok {
		return nil, errs.Wrap(errs.ErrorTypeFetch, &errs.Error{Type: errs.ErrorTypeNotFound, Code: 404}, "page fetch failed").WithURL(pageURL)
	}
	return selector.ParseString(body, pageURL)
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.url
	}
	return out
}

// fakeDownloader serves every asset as "asset:<url>"
type fakeDownloader struct {
	mu        sync.Mutex
	downloads []string
	fail      map[string]error
}

func (d *fakeDownloader) Download(ctx context.Context, assetURL string, w io.Writer) (int64, error) {
	d.mu.Lock()
	d.downloads = append(d.downloads, assetURL)
	d.mu.Unlock()

	if err := d.fail[assetURL]; err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, "asset:"+assetURL)
	return int64(n), err
}

func (d *fakeDownloader) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.downloads)
}

// countingDelay records pauses and can run a hook on each one
type countingDelay struct {
	pauses int
	hook   func()
}

func (c *countingDelay) Pause(ctx context.Context) (time.Duration, error) {
	c.pauses++
	if c.hook != nil {
		c.hook()
	}
	return time.Millisecond, ctx.Err()
}

type event struct {
	kind   string
	entry  string
	url    string
	detail string
}

type recordingObserver struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingObserver) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) EntryStarted(entry string) {
	r.add(event{kind: "start", entry: entry})
}

func (r *recordingObserver) PageVisited(entry, pageURL string) {
	r.add(event{kind: "visit", entry: entry, url: pageURL})
}

func (r *recordingObserver) PageSaved(entry, pageURL string, res downloader.Result) {
	r.add(event{kind: "saved", entry: entry, url: pageURL, detail: filepath.Base(res.Path)})
}

func (r *recordingObserver) PageSkipped(entry, pageURL, reason string) {
	r.add(event{kind: "skipped", entry: entry, url: pageURL, detail: reason})
}

func (r *recordingObserver) EntryFinished(entry string, res Result, err error) {
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	r.add(event{kind: "finish", entry: entry, detail: detail})
}

func (r *recordingObserver) kinds(kind string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	storePath  string
	outputDir  string
	store      *checkpoint.Store
	fetcher    *fakeFetcher
	downloader *fakeDownloader
	delay      *countingDelay
	observer   *recordingObserver
	log        *logger.TestLogger
	rc         *RunContext
}

func newHarness(t *testing.T, storeYAML string, pages map[string]string) *harness {
	t.Helper()

	dir := t.TempDir()
	h := &harness{
		storePath:  filepath.Join(dir, "config.yaml"),
		outputDir:  filepath.Join(dir, "output"),
		fetcher:    newFakeFetcher(pages),
		downloader: &fakeDownloader{fail: map[string]error{}},
		delay:      &countingDelay{},
		observer:   &recordingObserver{},
		log:        logger.NewTestLogger(),
	}
	if err := os.WriteFile(h.storePath, []byte(storeYAML), 0644); err != nil {
		t.Fatalf("Failed to write store: %v", err)
	}
	h.reopen(t)
	return h
}

// reopen loads the store from disk and rebuilds the run context, like a
// fresh process would
func (h *harness) reopen(t *testing.T) {
	t.Helper()

	store, err := checkpoint.Open(h.storePath, h.log)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	h.store = store
	h.rc = &RunContext{
		OutputDir: h.outputDir,
		Store:     store,
		Fetcher:   h.fetcher,
		Writer:    downloader.NewAssetWriter(h.downloader, h.log),
		Delay:     h.delay,
		Logger:    h.log,
		Observer:  h.observer,
	}
}

func (h *harness) entry(t *testing.T, name string) checkpoint.Entry {
	t.Helper()
	e, err := h.store.Get(name)
	if err != nil {
		t.Fatalf("Failed to get entry %s: %v", name, err)
	}
	return e
}

// files lists the entry directory, sorted
func (h *harness) files(t *testing.T, name string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(h.outputDir, name))
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}
