package scraper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/engine"
	"github.com/use-agent/tokscrape/models"
	"golang.org/x/sync/semaphore"
)

var _ engine.Engine = (*Scraper)(nil)

// instance is one launched Chromium. A retired instance is killed when
// its last user releases it.
type instance struct {
	browser *rod.Browser
	kill    func()
	health  browserHealth

	users   int
	retired bool
	once    sync.Once
}

func (i *instance) close() { i.once.Do(i.kill) }

type launchFunc func(config.BrowserConfig) (*instance, error)

// Scraper owns the Chromium process and renders TikTok pages in isolated
// incognito contexts. It is safe for concurrent use.
type Scraper struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	launch     launchFunc

	// pages bounds open pages across every caller.
	pages *semaphore.Weighted

	mu      sync.Mutex
	current *instance
	live    map[*instance]struct{}

	activePages atomic.Int32
	totalPages  atomic.Int64
}

func newScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, launch launchFunc) *Scraper {
	return &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		launch:     launch,
		pages:      semaphore.NewWeighted(int64(max(1, browserCfg.MaxPages))),
		live:       make(map[*instance]struct{}),
	}
}

// NewScraper launches the shared browser. In exclusive mode nothing is
// launched up front; every Fetch starts and kills its own Chromium.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	s := newScraper(browserCfg, scraperCfg, launchInstance)
	if browserCfg.Exclusive {
		slog.Info("browser runs in exclusive mode, one Chromium per page")
		return s, nil
	}

	inst, err := s.launch(browserCfg)
	if err != nil {
		return nil, err
	}
	s.current = inst
	s.live[inst] = struct{}{}
	return s, nil
}

func (s *Scraper) Name() string { return "rod" }

func launchInstance(cfg config.BrowserConfig) (*instance, error) {
	b, l, err := launch(cfg)
	if err != nil {
		return nil, err
	}
	return &instance{browser: b, kill: func() { shutdown(b, l) }}, nil
}

// launch starts a Chromium process with the stealth flag set and connects
// to it.
func launch(cfg config.BrowserConfig) (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("mute-audio"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}
	return browser, l, nil
}

// acquire waits for a page slot and returns the browser instance a fetch
// should use plus a release func. An unhealthy shared browser is replaced
// for new callers; fetches already running on it keep it alive until they
// release. Exclusive mode launches a fresh process that release kills.
func (s *Scraper) acquire(ctx context.Context) (*instance, func(), error) {
	if err := s.pages.Acquire(ctx, 1); err != nil {
		return nil, nil, engine.CategorizeError(err, "no free browser page")
	}
	freeSlot := func() { s.pages.Release(1) }

	if s.browserCfg.Exclusive {
		inst, err := s.launch(s.browserCfg)
		if err != nil {
			freeSlot()
			return nil, nil, err
		}
		return inst, func() {
			inst.close()
			freeSlot()
		}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.health.shouldRelaunch() {
		if old := s.current; old != nil {
			slog.Warn("shared browser unhealthy, relaunching",
				"failures", old.health.failures(), "in_flight", old.users)
			s.retire(old)
			s.current = nil
		}
		inst, err := s.launch(s.browserCfg)
		if err != nil {
			freeSlot()
			return nil, nil, err
		}
		s.current = inst
		s.live[inst] = struct{}{}
	}

	inst := s.current
	inst.users++
	var once sync.Once
	return inst, func() {
		once.Do(func() {
			s.release(inst)
			freeSlot()
		})
	}, nil
}

// retire stops handing inst out and kills it once idle. Caller holds mu.
func (s *Scraper) retire(inst *instance) {
	inst.retired = true
	if inst.users == 0 {
		inst.close()
		delete(s.live, inst)
	}
}

func (s *Scraper) release(inst *instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.users--
	if inst.retired && inst.users == 0 {
		inst.close()
		delete(s.live, inst)
	}
}

// Stats returns a snapshot of the browser's current load.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		Exclusive:   s.browserCfg.Exclusive,
		ActivePages: int(s.activePages.Load()),
		TotalPages:  int(s.totalPages.Load()),
	}
}

// Close kills every browser process still alive, including retired ones
// with fetches in flight. Call this on graceful shutdown to prevent zombie
// Chrome processes.
func (s *Scraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.live) == 0 {
		return
	}
	slog.Info("scraper shutting down: closing browser", "instances", len(s.live))
	for inst := range s.live {
		inst.retired = true
		inst.close()
		delete(s.live, inst)
	}
	s.current = nil
}

func shutdown(b *rod.Browser, l *launcher.Launcher) {
	if b != nil {
		_ = b.Close()
	}
	if l != nil {
		l.Kill()
		l.Cleanup()
	}
}
