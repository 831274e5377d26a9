package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"eventscout/internal/config"
	"eventscout/internal/logger"
	"eventscout/internal/models"
	"eventscout/pkg/utils"
)

// errElementMissing is returned by a card when a selector matches nothing.
var errElementMissing = errors.New("element not found")

// sessionMu serializes browser sessions process-wide. Only one headless
// browser may be driven at a time.
var sessionMu sync.Mutex

// BrowserOptions parameterizes the browser-rendered listings adapter.
type BrowserOptions struct {
	ListingURL     string
	CardSelector   string
	TitleSelector  string
	DateSelector   string
	PlaceSelector  string
	ExecutablePath string
	Wait           time.Duration
	ActionTimeout  time.Duration
}

// BrowserOptionsFromConfig extracts adapter options from the run configuration.
func BrowserOptionsFromConfig(cfg *config.Config) BrowserOptions {
	b := cfg.Source.Browser

	return BrowserOptions{
		ListingURL:     b.ListingURL,
		CardSelector:   b.CardSelector,
		TitleSelector:  b.TitleSelector,
		DateSelector:   b.DateSelector,
		PlaceSelector:  b.PlaceSelector,
		ExecutablePath: b.ExecutablePath,
		Wait:           time.Duration(b.WaitMs) * time.Millisecond,
		ActionTimeout:  cfg.Retry.GetTimeout(),
	}
}

// browserDriver opens browser sessions. The playwright implementation is the
// production driver; tests substitute a fake.
type browserDriver interface {
	Open(opts BrowserOptions) (browserSession, error)
}

type browserSession interface {
	Visit(url string, wait time.Duration) error
	Cards(selector string) ([]cardElement, error)
	Close() error
}

type cardElement interface {
	Text(selector string) (string, error)
	Attr(selector, name string) (string, error)
}

// BrowserAdapter renders a listings page in a headless browser and extracts
// one raw record per event card.
type BrowserAdapter struct {
	driver   browserDriver
	logger   *logger.Logger
	opts     BrowserOptions
	inflight sync.WaitGroup
}

// NewBrowserAdapter creates an adapter backed by playwright.
func NewBrowserAdapter(opts BrowserOptions, log *logger.Logger) *BrowserAdapter {
	return newBrowserAdapter(playwrightDriver{}, opts, log)
}

func newBrowserAdapter(driver browserDriver, opts BrowserOptions, log *logger.Logger) *BrowserAdapter {
	return &BrowserAdapter{
		driver: driver,
		logger: log.Component("crawler").With("source", "browser"),
		opts:   opts,
	}
}

// Name implements Source.
func (a *BrowserAdapter) Name() string {
	return "browser"
}

// ListingURL expands {city} and {genre} placeholders in the configured URL.
func (a *BrowserAdapter) ListingURL(q models.Query) string {
	return strings.NewReplacer(
		"{city}", slug(q.City),
		"{genre}", slug(q.Genre),
	).Replace(a.opts.ListingURL)
}

// Fetch implements Source. The session is released on every path. When ctx
// expires first, Fetch returns at once and the session is closed in the
// background; Close waits for that.
func (a *BrowserAdapter) Fetch(ctx context.Context, q models.Query, maxResults int) (Batch, error) {
	type outcome struct {
		batch Batch
		err   error
	}

	done := make(chan outcome, 1)

	a.inflight.Add(1)

	go func() {
		defer a.inflight.Done()

		batch, err := a.fetch(ctx, q, maxResults)
		done <- outcome{batch: batch, err: err}
	}()

	select {
	case out := <-done:
		return out.batch, out.err
	case <-ctx.Done():
		return Batch{Source: a.Name(), Kind: models.SourceBrowser}, fmt.Errorf("%s: %w", q.Key(), ctx.Err())
	}
}

func (a *BrowserAdapter) fetch(ctx context.Context, q models.Query, maxResults int) (Batch, error) {
	batch := Batch{Source: a.Name(), Kind: models.SourceBrowser}

	sessionMu.Lock()
	defer sessionMu.Unlock()

	if err := ctx.Err(); err != nil {
		return batch, err
	}

	start := time.Now()

	session, err := a.driver.Open(a.opts)
	if err != nil {
		return batch, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, q.Key(), err)
	}

	// Closing the session from AfterFunc unblocks a navigation stuck past ctx.
	closeSession := sync.OnceValue(session.Close)
	stop := context.AfterFunc(ctx, func() { _ = closeSession() })

	defer func() {
		stop()

		if cerr := closeSession(); cerr != nil {
			a.logger.Warn("⚠️  Failed to close browser session", "error", cerr)
		}
	}()

	url := a.ListingURL(q)
	if err := session.Visit(url, a.opts.Wait); err != nil {
		return batch, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, url, err)
	}

	cards, err := session.Cards(a.opts.CardSelector)
	if err != nil {
		return batch, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, url, err)
	}

	skipped := 0

	for i, card := range cards {
		if maxResults > 0 && len(batch.Records) >= maxResults {
			break
		}

		if ctx.Err() != nil {
			break
		}

		record, err := a.extract(card)
		if err != nil {
			skipped++

			a.logger.Warn("⚠️  Skipping card", "query", q.Key(), "index", i, "error", err)

			continue
		}

		batch.Records = append(batch.Records, record)
	}

	a.logger.Debug("✅ Extracted cards", "query", q.Key(), "url", url,
		"count", len(batch.Records), "skipped", skipped, "duration", time.Since(start))

	return batch, nil
}

// Close waits for sessions still held by fetches whose context expired.
func (a *BrowserAdapter) Close() error {
	a.inflight.Wait()

	return nil
}

// extract reads one card. Any missing field skips the card.
func (a *BrowserAdapter) extract(card cardElement) (models.RawRecord, error) {
	fields := []struct {
		key      string
		selector string
	}{
		{models.CardName, a.opts.TitleSelector},
		{models.CardDate, a.opts.DateSelector},
		{models.CardLocation, a.opts.PlaceSelector},
	}

	record := make(models.RawRecord, len(fields)+1)

	for _, f := range fields {
		text, err := card.Text(f.selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrExtraction, f.key, err)
		}

		record[f.key] = text
	}

	link, err := card.Attr("a", "href")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtraction, models.CardLink, err)
	}

	if !utils.NewHTTPHelper().IsValidURL(link) {
		return nil, fmt.Errorf("%w: %s: not an absolute URL: %q", ErrExtraction, models.CardLink, link)
	}

	record[models.CardLink] = link

	return record, nil
}

func slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}

// playwrightDriver launches headless Chromium through playwright.
type playwrightDriver struct{}

type playwrightSession struct {
	pw      *pw.Playwright
	browser pw.Browser
	page    pw.Page
}

func (playwrightDriver) Open(opts BrowserOptions) (browserSession, error) {
	instance, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOptions := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(true),
	}
	if opts.ExecutablePath != "" {
		launchOptions.ExecutablePath = pw.String(opts.ExecutablePath)
	}

	browser, err := instance.Chromium.Launch(launchOptions)
	if err != nil {
		_ = instance.Stop()

		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = instance.Stop()

		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if opts.ActionTimeout > 0 {
		page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	}

	return &playwrightSession{pw: instance, browser: browser, page: page}, nil
}

func (s *playwrightSession) Visit(url string, wait time.Duration) error {
	if _, err := s.page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}

	// Cards are rendered client-side after load.
	if wait > 0 {
		s.page.WaitForTimeout(float64(wait.Milliseconds()))
	}

	return nil
}

func (s *playwrightSession) Cards(selector string) ([]cardElement, error) {
	locators := s.page.Locator(selector)

	count, err := locators.Count()
	if err != nil {
		return nil, err
	}

	cards := make([]cardElement, 0, count)
	for i := range count {
		cards = append(cards, playwrightCard{locator: locators.Nth(i)})
	}

	return cards, nil
}

func (s *playwrightSession) Close() error {
	var errs []error

	if err := s.page.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := s.pw.Stop(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

type playwrightCard struct {
	locator pw.Locator
}

func (c playwrightCard) first(selector string) (pw.Locator, error) {
	l := c.locator.Locator(selector)

	count, err := l.Count()
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, fmt.Errorf("%w: %s", errElementMissing, selector)
	}

	return l.First(), nil
}

func (c playwrightCard) Text(selector string) (string, error) {
	l, err := c.first(selector)
	if err != nil {
		return "", err
	}

	return l.InnerText()
}

func (c playwrightCard) Attr(selector, name string) (string, error) {
	l, err := c.first(selector)
	if err != nil {
		return "", err
	}

	value, err := l.GetAttribute(name)
	if err != nil {
		return "", err
	}

	if value == "" {
		return "", fmt.Errorf("%w: %s[%s]", errElementMissing, selector, name)
	}

	return value, nil
}
