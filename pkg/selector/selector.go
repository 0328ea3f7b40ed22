// Package selector evaluates extraction expressions against HTML documents.
//
// Expressions are XPath by default. An expression prefixed with "css:" is a
// CSS selector; a trailing "@name" on a CSS selector reads that attribute
// instead of the element text:
//
//	//a[@rel="next"]/@href      XPath attribute
//	string(//h1)                XPath scalar
//	css:#comic img@src          CSS with attribute
//	css:.caption                CSS element text
package selector

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	errs "chaincrawl/pkg/errors"
)

const cssPrefix = "css:"

var attrSuffix = regexp.MustCompile(`^(.*[^\s])\s*@([A-Za-z_][-A-Za-z0-9_:.]*)$`)

// Document is a parsed HTML page
type Document struct {
	URL  string
	root *html.Node
}

// Parse reads an HTML document. pageURL is recorded for diagnostics.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{URL: pageURL, root: root}, nil
}

// ParseString parses an in-memory HTML document
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// Evaluator compiles and caches expressions. The zero value is not usable;
// create one with New.
type Evaluator struct {
	mu    sync.Mutex
	xpath map[string]*xpath.Expr
	css   map[string]cssQuery
}

type cssQuery struct {
	sel  cascadia.Selector
	attr string
}

// New creates an Evaluator
func New() *Evaluator {
	return &Evaluator{
		xpath: make(map[string]*xpath.Expr),
		css:   make(map[string]cssQuery),
	}
}

// Extract evaluates expr against doc. An empty expression or no match yields
// an empty slice and a nil error; only a malformed expression is an error.
// Results are whitespace-trimmed and blank results are dropped.
func (e *Evaluator) Extract(doc *Document, expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || doc == nil {
		return nil, nil
	}

	if strings.HasPrefix(expr, cssPrefix) {
		q, err := e.compileCSS(strings.TrimSpace(strings.TrimPrefix(expr, cssPrefix)))
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeInvalidEntry, err, fmt.Sprintf("invalid CSS selector %q", expr))
		}
		return q.run(doc.root), nil
	}

	x, err := e.compileXPath(expr)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidEntry, err, fmt.Sprintf("invalid XPath expression %q", expr))
	}
	return evalXPath(x, doc.root), nil
}

// First returns the first result of expr, if any
func (e *Evaluator) First(doc *Document, expr string) (string, bool, error) {
	results, err := e.Extract(doc, expr)
	if err != nil || len(results) == 0 {
		return "", false, err
	}
	return results[0], true, nil
}

// Check compiles expr without evaluating it
func (e *Evaluator) Check(expr string) error {
	_, err := e.Extract(&Document{root: &html.Node{Type: html.DocumentNode}}, expr)
	return err
}

func (e *Evaluator) compileXPath(expr string) (*xpath.Expr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if x, ok := e.xpath[expr]; ok {
		return x, nil
	}
	x, err := xpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	e.xpath[expr] = x
	return x, nil
}

func (e *Evaluator) compileCSS(expr string) (cssQuery, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.css[expr]; ok {
		return q, nil
	}

	q := cssQuery{}
	source := expr
	if m := attrSuffix.FindStringSubmatch(expr); m != nil && !strings.ContainsAny(m[2], `"']`) {
		source, q.attr = m[1], m[2]
	}

	sel, err := cascadia.Compile(source)
	if err != nil {
		return cssQuery{}, err
	}
	q.sel = sel
	e.css[expr] = q
	return q, nil
}

func (q cssQuery) run(root *html.Node) []string {
	var out []string
	goquery.NewDocumentFromNode(root).FindMatcher(q.sel).Each(func(_ int, s *goquery.Selection) {
		var v string
		if q.attr != "" {
			v, _ = s.Attr(q.attr)
		} else {
			v = s.Text()
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	})
	return out
}

func evalXPath(x *xpath.Expr, root *html.Node) []string {
	switch v := x.Evaluate(htmlquery.CreateXPathNavigator(root)).(type) {
	case *xpath.NodeIterator:
		var out []string
		for v.MoveNext() {
			if s := strings.TrimSpace(v.Current().Value()); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(v)}
	}
	return nil
}
