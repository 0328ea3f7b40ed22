package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RendererConfig controls the headless renderer
type RendererConfig struct {
	Timeout   time.Duration
	UserAgent string
	// Settle is how long to wait after the body is ready, for late scripts
	Settle time.Duration
}

// Renderer loads pages in headless Chrome. The browser is started on first
// use and shared by every later render.
type Renderer struct {
	cfg RendererConfig

	once          sync.Once
	startErr      error
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewRenderer creates a renderer; no browser is launched until Render is called
func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	return &Renderer{cfg: cfg}
}

func (r *Renderer) start() error {
	r.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
		)
		if r.cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			r.startErr = fmt.Errorf("chromedp warmup: %w", err)
			return
		}
		r.browserCtx, r.browserCancel, r.allocCancel = browserCtx, browserCancel, allocCancel
	})
	return r.startErr
}

// Render navigates to pageURL in a fresh tab and returns the rendered DOM
func (r *Renderer) Render(ctx context.Context, pageURL string, headers http.Header) (string, error) {
	if err := r.start(); err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer cancel()

	// Abort the tab when the caller gives up
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		networkSetup(headers),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.cfg.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

// Close shuts the browser down
func (r *Renderer) Close() {
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

func networkSetup(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if ua := headers.Get("User-Agent"); ua != "" {
			if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		extra := toNetworkHeaders(headers)
		delete(extra, "User-Agent")
		if len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
