package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

// keyNames maps the driver-surface key names to CDP key definitions
var keyNames = map[string]string{
	"ArrowDown":  kb.ArrowDown,
	"ArrowUp":    kb.ArrowUp,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Enter":      kb.Enter,
	"Escape":     kb.Escape,
	"Tab":        kb.Tab,
}

// SessionOptions carries the per-account launch parameters: which virtual
// display the window lands on and which upstream proxy the browser uses.
type SessionOptions struct {
	ProxyURL string
	// DisplayID selects the X display (DISPLAY=:<n>); negative means inherit
	// the process environment
	DisplayID int
}

// Session is one dedicated Chrome instance bound to a single account run.
// It implements interfaces.BrowserPage.
type Session struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	config          common.BrowserConfig
	logger          arbor.ILogger
}

// NewSession launches a Chrome instance with the given options and verifies
// it responds before returning. The caller owns the session and must Close it.
func NewSession(ctx context.Context, config common.BrowserConfig, opts SessionOptions, logger arbor.ILogger) (*Session, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", config.DisableGPU),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
	)
	if config.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(config.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}
	if opts.DisplayID >= 0 {
		display := fmt.Sprintf("DISPLAY=:%d", opts.DisplayID)
		allocOpts = append(allocOpts, chromedp.ModifyCmdFunc(func(cmd *exec.Cmd) {
			cmd.Env = append(os.Environ(), display)
		}))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	s := &Session{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		config:          config,
		logger:          logger,
	}

	// Launch test - fail fast when Chrome is missing or the display is bad
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	logger.Debug().
		Str("proxy", opts.ProxyURL).
		Int("display", opts.DisplayID).
		Bool("headless", config.Headless).
		Msg("Browser session started")

	return s, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := common.ParseDuration(s.config.NavTimeout, 45*time.Second)
	navCtx, cancel := s.bound(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	locCtx, cancel := s.bound(ctx, 10*time.Second)
	defer cancel()

	var loc string
	if err := chromedp.Run(locCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := s.bound(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := s.bound(ctx, s.waitTimeout())
	defer cancel()

	if err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// SetValue writes the element's value directly and fires an input event so
// framework-bound composers notice the change. Faster than keystrokes but the
// page can ignore it, which is why callers verify and fall back to SendKeys.
func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	setCtx, cancel := s.bound(ctx, s.waitTimeout())
	defer cancel()

	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.focus();
		if ('value' in el) { el.value = %q; } else { el.textContent = %q; }
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})()`, selector, value, value)

	var ok bool
	if err := chromedp.Run(setCtx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("set value on %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("set value on %q: element not found", selector)
	}
	return nil
}

func (s *Session) SendKeys(ctx context.Context, selector, text string) error {
	sendCtx, cancel := s.bound(ctx, s.waitTimeout())
	defer cancel()

	if err := chromedp.Run(sendCtx, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("send keys to %q: %w", selector, err)
	}
	return nil
}

func (s *Session) PressKey(ctx context.Context, key string) error {
	def, found := keyNames[key]
	if !found {
		return fmt.Errorf("press key: unknown key %q", key)
	}

	pressCtx, cancel := s.bound(ctx, 10*time.Second)
	defer cancel()

	if err := chromedp.Run(pressCtx, chromedp.KeyEvent(def)); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	evalCtx, cancel := s.bound(ctx, 20*time.Second)
	defer cancel()

	if err := chromedp.Run(evalCtx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Cookies reads the full browser cookie jar for session persistence
func (s *Session) Cookies(ctx context.Context) ([]models.Cookie, error) {
	readCtx, cancel := s.bound(ctx, 10*time.Second)
	defer cancel()

	var cookies []models.Cookie
	err := chromedp.Run(readCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookie := models.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			}
			if c.Expires > 0 {
				sec := int64(c.Expires)
				nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
				cookie.Expires = time.Unix(sec, nsec).UTC()
			}
			cookies = append(cookies, cookie)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return cookies, nil
}

// SetCookies injects a persisted cookie set before the first navigation.
// Individual failures are logged and skipped - a partial jar still usually
// restores the session.
func (s *Session) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	setCtx, cancel := s.bound(ctx, 15*time.Second)
	defer cancel()

	err := chromedp.Run(setCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				setter := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly)
				if !c.Expires.IsZero() {
					expires := cdp.TimeSinceEpoch(c.Expires)
					setter = setter.WithExpires(&expires)
				}
				if err := setter.Do(ctx); err != nil {
					s.logger.Warn().
						Err(err).
						Str("cookie", c.Name).
						Str("domain", c.Domain).
						Msg("Failed to inject cookie, continuing")
				}
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Close tears down the browser and its allocator. Safe to call more than once.
func (s *Session) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
		s.allocatorCancel = nil
	}
	return nil
}

// bound derives a timeout context that also dies with the browser context,
// so a cancelled run interrupts in-flight CDP calls
func (s *Session) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func (s *Session) waitTimeout() time.Duration {
	return common.ParseDuration(s.config.WaitTimeout, 15*time.Second)
}
