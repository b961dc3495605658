package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher retrieves pages with headless Chrome. Idealista sits behind
// aggressive bot protection; when plain HTTP GETs start coming back as
// captcha pages, a real browser session is the fallback. The browser keeps
// its own cookie state, so the cookieHeader argument is ignored.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	headless bool
}

// NewBrowserFetcher creates a browser fetcher. Call Start before use and
// Stop when done.
func NewBrowserFetcher(headless bool) *BrowserFetcher {
	return &BrowserFetcher{headless: headless}
}

// Start launches the browser allocator.
func (b *BrowserFetcher) Start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Anti-detection flags
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(defaultUserAgent),
	)

	b.allocCtx, b.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return nil
}

// Stop closes the browser.
func (b *BrowserFetcher) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Fetch navigates to rawURL and returns the rendered page HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL, _ string) (string, error) {
	if b.allocCtx == nil {
		return "", fmt.Errorf("browser fetcher not started")
	}

	taskCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()

	taskCtx, cancel = context.WithTimeout(taskCtx, 45*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(taskCtx,
		emulation.SetUserAgentOverride(defaultUserAgent).WithAcceptLanguage("es-ES,es;q=0.9"),
		// Hide the webdriver flag before site scripts look for it.
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`, nil),
		chromedp.Navigate(rawURL),
		// Let client-side rendering and anti-bot checks settle.
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		return "", fmt.Errorf("browser fetch %s: %w", rawURL, err)
	}

	slog.Debug("browser fetch ok", "url", rawURL, "body_len", len(html))
	return html, nil
}
