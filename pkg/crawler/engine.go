package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/checkpoint"
	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/metadata"
	"chaincrawl/pkg/selector"
)

// Skip reasons reported to observers and logs
const (
	ReasonSkipList = "in skip list"
	ReasonSaved    = "already saved"
)

// Result summarizes one entry's traversal
type Result struct {
	// Entry is the entry as it stands after the run, including new saved URLs
	Entry checkpoint.Entry
	// Pages counts pages fetched
	Pages int
	// Saved counts assets downloaded in this run
	Saved int
	// Existing counts pages whose asset was already on disk and got recorded
	Existing int
	// Skipped counts pages passed over by the skip policy
	Skipped  int
	Duration time.Duration
}

// cursor is the traversal position within one entry
type cursor struct {
	url     string
	counter int
	// origin is "scheme//host" of the URL the run started from
	origin string
	dir    string
	// pending is the unfinished download left by an earlier run, if any
	pending *checkpoint.Pending
	// visited holds every page fetched in this run
	visited map[string]bool
}

// Engine follows one entry's page chain
type Engine struct {
	rc *RunContext
}

// NewEngine creates an Engine over rc
func NewEngine(rc *RunContext) *Engine {
	return &Engine{rc: rc.withDefaults()}
}

// RunEntry processes entry's page chain until a page without a next link
// has been handled or an error occurs. The returned Result always reflects
// what was checkpointed, also on error.
func (e *Engine) RunEntry(ctx context.Context, entry checkpoint.Entry) (Result, error) {
	start := time.Now()
	res := Result{Entry: entry}
	log := e.rc.Logger.WithField("entry", entry.Name)

	cur, err := e.prepare(entry)
	if err != nil {
		return res, tagEntry(err, entry.Name)
	}
	render := entry.Render || e.rc.Render

	log.InfoWithFields("Starting entry", map[string]interface{}{
		"url":     cur.url,
		"counter": cur.counter,
		"render":  render,
	})

	err = e.traverse(ctx, log, &res, cur, render)
	res.Duration = time.Since(start)
	if err != nil {
		return res, tagEntry(err, entry.Name)
	}
	return res, nil
}

// prepare positions the cursor at the resume URL and recovers numbering
func (e *Engine) prepare(entry checkpoint.Entry) (*cursor, error) {
	startURL := entry.ResumeURL()
	origin, err := originOf(startURL)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(e.rc.OutputDir, entry.Name)
	counter, err := e.rc.Writer.NextCounter(dir)
	if err != nil {
		return nil, err
	}

	return &cursor{
		url:     startURL,
		counter: counter,
		origin:  origin,
		dir:     dir,
		pending: entry.Pending,
		visited: make(map[string]bool),
	}, nil
}

// adopt picks up the asset of a page whose download finished in an earlier
// run that stopped before checkpointing it. Only the first page saved in a
// run can be in that position.
func (e *Engine) adopt(cur *cursor) (downloader.Result, bool) {
	pending := cur.pending
	cur.pending = nil
	if pending == nil || pending.URL != cur.url || pending.File == "" {
		return downloader.Result{}, false
	}
	return e.rc.Writer.Adopt(cur.dir, pending.File)
}

func (e *Engine) traverse(ctx context.Context, log logger.Logger, res *Result, cur *cursor, render bool) error {
	entry := &res.Entry

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.rc.Observer.PageVisited(entry.Name, cur.url)
		doc, err := e.rc.Fetcher.Fetch(ctx, cur.url, render)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		res.Pages++
		cur.visited[cur.url] = true

		next, err := e.nextPage(doc, entry.NextPage, cur.origin)
		if err != nil {
			return err
		}
		if next != "" && cur.visited[next] {
			// A link back to itself or an earlier page ends the chain
			log.InfoWithFields("Next page already visited, treating as last page", map[string]interface{}{
				"page": cur.url,
				"next": next,
			})
			next = ""
		} else if next == "" {
			log.InfoWithFields("No next page found", map[string]interface{}{
				"page": cur.url,
			})
		}

		if reason := skipReason(*entry, cur.url); reason != "" {
			res.Skipped++
			logger.LogSkipped(log, entry.Name, cur.url, reason)
			e.rc.Observer.PageSkipped(entry.Name, cur.url, reason)
			if next == "" {
				return nil
			}
			cur.url = next
			continue
		}

		if err := e.savePage(ctx, log, res, cur, doc); err != nil {
			return err
		}

		if next == "" {
			return nil
		}

		wait, err := e.rc.Delay.Pause(ctx)
		if err != nil {
			return err
		}
		logger.LogDelay(log, wait)

		cur.url = next
	}
}

// savePage extracts the page's fields, writes its asset and checkpoints it
func (e *Engine) savePage(ctx context.Context, log logger.Logger, res *Result, cur *cursor, doc *selector.Document) error {
	entry := &res.Entry

	title, err := e.first(doc, entry.Title)
	if err != nil {
		return err
	}
	if title == "" {
		title = cur.url
	}

	image, err := e.first(doc, entry.Image)
	if err != nil {
		return err
	}
	if image == "" {
		return errs.New(errs.ErrorTypeExtractionMiss, "no image found").WithURL(cur.url)
	}
	image = resolveAsset(cur.url, image)

	meta := &metadata.PageMetadata{
		Entry:    entry.Name,
		PageURL:  cur.url,
		Title:    title,
		ImageURL: image,
	}
	if entry.Text != "" {
		lines, err := e.rc.Extractor.Extract(doc, entry.Text)
		if err != nil {
			return err
		}
		meta.Text = strings.Join(lines, "\n")
		if meta.Text != "" {
			log.DebugWithFields("Page text", map[string]interface{}{
				"page": cur.url,
				"text": meta.Summary(120),
			})
		}
	}

	saved, adopted := e.adopt(cur)
	if !adopted {
		file := e.rc.Writer.FileName(cur.counter, title, image)
		if err := e.rc.Store.MarkPending(entry.Name, cur.url, file); err != nil {
			return err
		}
		var err error
		saved, err = e.rc.Writer.Save(ctx, cur.dir, cur.counter, title, image)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}

	if err := e.rc.Store.RecordSaved(entry.Name, cur.url); err != nil {
		return err
	}
	entry.SavedURLs = append(entry.SavedURLs, cur.url)

	if saved.Written {
		res.Saved++
	} else {
		res.Existing++
	}
	logger.LogSaved(log, entry.Name, cur.url, saved.Path, saved.Written, saved.Bytes)
	e.rc.Observer.PageSaved(entry.Name, cur.url, saved)

	if e.rc.SaveMetadata && saved.Written {
		meta.Counter = cur.counter
		meta.FileName = filepath.Base(saved.Path)
		meta.FileSize = saved.Bytes
		meta.SavedAt = time.Now()
		// The asset and checkpoint are already durable, a sidecar failure
		// does not end the entry
		if _, err := e.rc.Writer.SaveMetadata(cur.dir, meta); err != nil {
			log.WithError(err).Warn("Failed to save metadata")
		}
	}

	if !adopted {
		cur.counter++
	}
	return nil
}

// nextPage evaluates the next-page selector and resolves the link. An empty
// result means the current page is the last one.
func (e *Engine) nextPage(doc *selector.Document, expr, origin string) (string, error) {
	link, err := e.first(doc, expr)
	if err != nil || link == "" {
		return "", err
	}
	return resolveLink(origin, link), nil
}

func (e *Engine) first(doc *selector.Document, expr string) (string, error) {
	if expr == "" {
		return "", nil
	}
	values, err := e.rc.Extractor.Extract(doc, expr)
	if err != nil {
		return "", err
	}
	for _, v := range values {
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

// skipReason applies the skip policy: the skip list wins over saved URLs
func skipReason(entry checkpoint.Entry, pageURL string) string {
	switch {
	case entry.IsSkipped(pageURL):
		return ReasonSkipList
	case entry.IsSaved(pageURL):
		return ReasonSaved
	default:
		return ""
	}
}

// originOf splits rawURL on "/" and returns "scheme//host", e.g.
// "https://example.com" for "https://example.com/a/1".
func originOf(rawURL string) (string, error) {
	parts := strings.SplitN(rawURL, "/", 4)
	if len(parts) < 3 || parts[0] == "" || parts[1] != "" || parts[2] == "" {
		return "", errs.New(errs.ErrorTypeInvalidEntry,
			fmt.Sprintf("start url %q is not absolute", rawURL))
	}
	return parts[0] + "//" + parts[2], nil
}

// resolveLink turns a next-page value into an absolute URL. Values not
// starting with "http" are appended to the origin as they are.
func resolveLink(origin, link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return origin + link
}

// resolveAsset resolves an image reference against the page it appeared on
func resolveAsset(pageURL, ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// tagEntry attaches the entry name to a typed error. Cancellation passes
// through untouched.
func tagEntry(err error, name string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Entry != "" {
			return err
		}
		return e.WithEntry(name)
	}
	return errs.Wrap(errs.ErrorTypeUnknown, err, "entry failed").WithEntry(name)
}
