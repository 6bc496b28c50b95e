package scraper

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/tokscrape/engine"
	"github.com/use-agent/tokscrape/models"
	"github.com/ysmood/gson"
)

// Fetch renders one TikTok page and returns its snapshot.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Validate URL        – rejects non-TikTok URLs before any browser work
//  2. Acquire browser     – page slot, then the shared or a dedicated process
//  3. Isolated context    – incognito browser context, closed on every exit path
//  4. Page identity       – user agent, viewport, headers, stealth JS
//  5. Hijack mount        – block configured resource types
//  6. Navigate            – bounded by NavigationTimeout
//  7. Settle              – readiness poll, scroll, DOM-stable wait
//  8. Snapshot            – HTML, innerText, title, final URL, screenshot
//
// Steps 4 and 5 happen before step 6 because stealth JS and resource
// blocking only apply to navigations that start after they are installed.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*models.RawPage, error) {
	// ── 1. Validate URL ───────────────────────────────────────────────
	if err := models.ValidateVideoURL(rawURL); err != nil {
		return nil, err
	}

	// ── 2. Acquire browser ────────────────────────────────────────────
	inst, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// ── 3. Isolated context ───────────────────────────────────────────
	incognito, err := inst.browser.Incognito()
	if err != nil {
		inst.health.recordCrash()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		inst.health.recordCrash()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}
	defer func() { _ = page.Close() }()

	s.activePages.Add(1)
	defer s.activePages.Add(-1)
	s.totalPages.Add(1)

	// ── 4. Page identity ──────────────────────────────────────────────
	s.applyIdentity(page)

	// ── 5. Mount hijack router ────────────────────────────────────────
	if router := setupHijack(page, s.scraperCfg.BlockedResourceTypes); router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Navigate ───────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer navCancel()
	nav := page.Context(navCtx)
	if err := nav.Navigate(rawURL); err != nil {
		return nil, engine.CategorizeError(err, "navigation to target URL failed")
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, engine.CategorizeError(err, "page did not finish loading")
	}

	// ── 7. Settle ─────────────────────────────────────────────────────
	settle(ctx, page, s.settleSteps())

	// ── 8. Snapshot ───────────────────────────────────────────────────
	p := page.Context(ctx)
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, engine.CategorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}

	result := &models.RawPage{
		URL:      rawURL,
		FinalURL: finalURL,
		HTML:     rawHTML,
		Text:     evalStringOrEmpty(p, `() => document.body ? document.body.innerText : ""`),
		Title:    evalStringOrEmpty(p, `() => document.title`),
		Engine:   s.Name(),
	}

	if s.scraperCfg.Debug {
		png, shotErr := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if shotErr != nil {
			slog.Warn("debug screenshot failed", "url", rawURL, "error", shotErr)
		} else {
			result.Screenshot = png
		}
	}

	inst.health.recordSuccess()
	return result, nil
}

// applyIdentity makes the page look like a desktop Chrome visitor. Every
// step is best-effort.
func (s *Scraper) applyIdentity(page *rod.Page) {
	cfg := s.browserCfg

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		slog.Warn("set user agent failed", "error", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("set viewport failed", "error", err)
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.tiktok.com/",
		}),
	}.Call(page)

	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
