package crawler

import (
	"context"

	"chaincrawl/pkg/checkpoint"
)

// ProbeField is one selector's outcome on the probed page
type ProbeField struct {
	Name   string
	Expr   string
	Values []string
	Err    error
}

// Found reports whether the selector matched anything
func (f ProbeField) Found() bool {
	return len(f.Values) > 0
}

// ProbeResult is what a dry run saw on a single page
type ProbeResult struct {
	Entry  string
	URL    string
	Fields []ProbeField
}

// Probe fetches one page of entry and evaluates every selector on it,
// writing nothing. The page is the resume URL, or the start URL when
// fromStart is set.
func Probe(ctx context.Context, rc *RunContext, entry checkpoint.Entry, fromStart bool) (*ProbeResult, error) {
	rc = rc.withDefaults()

	pageURL := entry.ResumeURL()
	if fromStart {
		pageURL = entry.URL
	}

	doc, err := rc.Fetcher.Fetch(ctx, pageURL, entry.Render || rc.Render)
	if err != nil {
		return nil, tagEntry(err, entry.Name)
	}

	result := &ProbeResult{Entry: entry.Name, URL: pageURL}
	for _, f := range []struct{ name, expr string }{
		{"next_page", entry.NextPage},
		{"title", entry.Title},
		{"image", entry.Image},
		{"text", entry.Text},
	} {
		field := ProbeField{Name: f.name, Expr: f.expr}
		if f.expr != "" {
			field.Values, field.Err = rc.Extractor.Extract(doc, f.expr)
		}
		result.Fields = append(result.Fields, field)
	}
	return result, nil
}
