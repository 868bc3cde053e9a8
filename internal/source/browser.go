package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const duckDuckGoHTML = "https://html.duckduckgo.com/html/?q="

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	ExecPath  string
	UserAgent string
	Headless  bool
	Timeout   time.Duration
}

// BrowserSearcher runs web searches in headless Chrome against the
// DuckDuckGo HTML endpoint. All searches share one Chrome process, each in
// its own tab.
type BrowserSearcher struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	timeout       time.Duration
	logger        *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewBrowserSearcher prepares the browser. Chrome itself starts with the
// first search. Close releases it.
func NewBrowserSearcher(opts BrowserOptions, logger *zap.Logger) *BrowserSearcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(quiet))
	return &BrowserSearcher{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		timeout:       opts.Timeout,
		logger:        logger,
	}
}

func quiet(string, ...interface{}) {}

// ensureBrowser launches Chrome once. Tabs created from browserCtx before
// that would each get a browser of their own. A failed launch is retried on
// the next search.
func (b *BrowserSearcher) ensureBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := chromedp.Run(b.browserCtx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	b.started = true
	b.logger.Info("headless browser started")
	return nil
}

const extractResultsJS = `
(function() {
	var out = [];
	document.querySelectorAll('.result').forEach(function(r) {
		var a = r.querySelector('a.result__a');
		if (!a || !a.href) return;
		var s = r.querySelector('.result__snippet');
		out.push({
			title: (a.textContent || '').trim(),
			url: a.href,
			snippet: s ? (s.textContent || '').trim() : ''
		});
	});
	return out;
})()`

// Search opens a new tab in the shared browser for each query. The tab is
// closed when ctx ends or the configured timeout passes.
func (b *BrowserSearcher) Search(ctx context.Context, query string) ([]Hit, error) {
	if err := b.ensureBrowser(); err != nil {
		return nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var hits []Hit
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(duckDuckGoHTML+url.QueryEscape(query)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(extractResultsJS, &hits),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("browser search: %w", err)
	}

	for i := range hits {
		hits[i].URL = unwrapRedirect(hits[i].URL)
	}
	b.logger.Debug("browser search", zap.String("query", query), zap.Int("hits", len(hits)))
	return hits, nil
}

// Close shuts the browser down.
func (b *BrowserSearcher) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// unwrapRedirect resolves DuckDuckGo's "/l/?uddg=<target>" links to the
// target URL.
func unwrapRedirect(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return raw
}
