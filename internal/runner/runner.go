package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/browser"
	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/display"
	"github.com/SamiESK/insta-scrapper/internal/extractor"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
	"github.com/SamiESK/insta-scrapper/internal/outreach"
	"github.com/SamiESK/insta-scrapper/internal/proxy"
	"github.com/SamiESK/insta-scrapper/internal/sessions"
	"github.com/SamiESK/insta-scrapper/internal/vault"
)

// PageFactory opens a browser page for one account run. Swapped for a fake
// in tests.
type PageFactory func(ctx context.Context, proxyURL string, displayID int) (interfaces.BrowserPage, error)

// Runner composes one full account run: acquire isolation resources, restore
// or establish the browser session, collect and process the feed, persist
// the session, report the result.
type Runner struct {
	storage   interfaces.StorageManager
	vault     *vault.Vault
	sessions  *sessions.Store
	displays  *display.Manager
	proxies   *proxy.Allocator
	generator interfaces.MessageGenerator
	codes     *CodeReader
	newPage   PageFactory
	config    *common.Config
	logger    arbor.ILogger

	loginTimeout time.Duration
	pollInterval time.Duration
}

// New creates a runner wired to the real browser driver
func New(
	storage interfaces.StorageManager,
	credentialVault *vault.Vault,
	sessionStore *sessions.Store,
	displays *display.Manager,
	proxies *proxy.Allocator,
	generator interfaces.MessageGenerator,
	config *common.Config,
	logger arbor.ILogger,
) *Runner {
	r := &Runner{
		storage:      storage,
		vault:        credentialVault,
		sessions:     sessionStore,
		displays:     displays,
		proxies:      proxies,
		generator:    generator,
		codes:        NewCodeReader(config.IMAP, logger),
		config:       config,
		logger:       logger,
		loginTimeout: 30 * time.Second,
		pollInterval: time.Second,
	}
	r.newPage = func(ctx context.Context, proxyURL string, displayID int) (interfaces.BrowserPage, error) {
		return browser.NewSession(ctx, config.Browser, browser.SessionOptions{
			ProxyURL:  proxyURL,
			DisplayID: displayID,
		}, logger)
	}
	return r
}

// Run executes one complete session for the account. Per-item failures are
// logged and swallowed; only per-run failures (authentication, stuck
// navigation) surface to the caller.
func (r *Runner) Run(ctx context.Context, account *models.Account) error {
	logger := r.logger.WithCorrelationId(fmt.Sprintf("account-%d", account.ID))
	logger.Info().Str("username", account.Username).Msg("Starting account run")

	displayID := -1
	if r.config.Display.Enabled {
		assignment, err := r.displays.EnsureRunning(ctx, account.ID)
		if err != nil {
			// A dead display slot is not fatal: fall back to whatever
			// DISPLAY the process inherited
			logger.Warn().Err(err).Msg("Display slot unavailable, proceeding without isolation")
		} else {
			displayID = assignment.DisplayID
			logger.Debug().
				Int("display", assignment.DisplayID).
				Int("vnc_port", assignment.VNCPort).
				Msg("Display slot ready")
		}
		defer r.displays.Release(account.ID)
	}

	proxyURL := account.Proxy
	if proxyURL == "" {
		proxyURL = r.proxies.ForAccount(account.ID)
	}

	page, err := r.newPage(ctx, proxyURL, displayID)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer page.Close()

	if err := r.establishSession(ctx, page, account); err != nil {
		return err
	}
	r.persistSession(ctx, page, account.ID)

	runErr := r.collect(ctx, page, account)

	// Persist whatever session state the run ended with, even on failure
	r.persistSession(ctx, page, account.ID)
	if err := r.storage.AccountStorage().TouchLastActive(ctx, account.ID); err != nil {
		logger.Warn().Err(err).Msg("Failed to update last-active timestamp")
	}

	if runErr != nil {
		return runErr
	}
	logger.Info().Msg("Account run completed")
	return nil
}

// establishSession restores the saved session when one authenticates, and
// logs in fresh otherwise
func (r *Runner) establishSession(ctx context.Context, page interfaces.BrowserPage, account *models.Account) error {
	err := r.restoreSession(ctx, page, account.ID)
	if err == nil {
		r.logger.Info().Int("account_id", account.ID).Msg("Saved session restored, skipping login")
		return nil
	}
	if !errors.Is(err, sessions.ErrNotFound) && !errors.Is(err, ErrSessionExpired) {
		return err
	}

	r.logger.Info().Int("account_id", account.ID).Err(err).Msg("No usable saved session, logging in")
	if loginErr := r.login(ctx, page, account); loginErr != nil {
		return loginErr
	}
	if err := page.Navigate(ctx, feedURL); err != nil {
		return fmt.Errorf("open feed after login: %w", err)
	}
	return nil
}

// restoreSession injects the saved cookies and verifies they authenticate.
// ErrNotFound means no saved session; ErrSessionExpired means the cookies no
// longer work.
func (r *Runner) restoreSession(ctx context.Context, page interfaces.BrowserPage, accountID int) error {
	blob, err := r.sessions.Load(accountID)
	if err != nil {
		return err
	}
	if err := page.SetCookies(ctx, blob.Cookies); err != nil {
		return fmt.Errorf("%w: cookie injection failed: %v", ErrSessionExpired, err)
	}
	if err := page.Navigate(ctx, feedURL); err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	state, err := r.loginState(ctx, page)
	if err != nil {
		return fmt.Errorf("probe session state: %w", err)
	}
	if state != "ok" {
		return fmt.Errorf("%w: state %q after cookie restore", ErrSessionExpired, state)
	}
	return nil
}

// persistSession snapshots the cookie jar into the session store, best effort
func (r *Runner) persistSession(ctx context.Context, page interfaces.BrowserPage, accountID int) {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Int("account_id", accountID).Msg("Failed to read cookies for persistence")
		return
	}
	if err := r.sessions.Save(accountID, cookies); err != nil {
		r.logger.Warn().Err(err).Int("account_id", accountID).Msg("Failed to persist session")
	}
}

// collect walks the feed: cheap metric gate, full extraction for qualifying
// items, outreach, advance. The stop flag is polled between items only, so a
// stop lands at an item boundary, never mid-extraction.
func (r *Runner) collect(ctx context.Context, page interfaces.BrowserPage, account *models.Account) error {
	engine := extractor.NewEngine(page, r.config.Extraction, r.logger)
	pipeline := outreach.NewPipeline(page, r.generator, r.storage.MessageStorage(), r.config.Outreach, r.logger)
	promptRef := pipeline.TemplateFor(account)

	maxItems := r.config.Extraction.MaxItemsPerRun
	if maxItems <= 0 {
		maxItems = 50
	}
	maxStuck := r.config.Extraction.MaxStuckAdvances
	if maxStuck <= 0 {
		maxStuck = 3
	}

	stuck := 0
	sent := 0
	for i := 0; i < maxItems; i++ {
		status, err := r.storage.AccountStorage().GetStatus(ctx, account.ID)
		if err == nil && status.ShouldStop() {
			r.logger.Info().
				Int("account_id", account.ID).
				Str("status", string(status)).
				Int("items_seen", i).
				Msg("Stop requested, ending run at item boundary")
			return nil
		}

		r.inspectItem(ctx, engine, pipeline, account, promptRef, &sent)

		if engine.AdvanceToNext(ctx) {
			stuck = 0
			continue
		}
		stuck++
		r.logger.Warn().
			Int("account_id", account.ID).
			Int("consecutive", stuck).
			Msg("Advance did not verify")
		if stuck >= maxStuck {
			return fmt.Errorf("%d consecutive failed advances: %w", stuck, extractor.ErrNavigationStuck)
		}
	}
	return nil
}

// inspectItem handles the currently focused reel. All failures here are
// per-item: logged and swallowed so the loop continues.
func (r *Runner) inspectItem(
	ctx context.Context,
	engine *extractor.Engine,
	pipeline *outreach.Pipeline,
	account *models.Account,
	promptRef string,
	sent *int,
) {
	token, err := engine.ExtractMetricOnly(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Metric gate probe failed, skipping item")
		return
	}
	if extractor.ParseCompactCount(token) < r.config.Extraction.LikeThreshold {
		return
	}

	result, err := engine.ExtractFull(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Full extraction failed, skipping item")
		return
	}
	if !result.Complete() {
		// Incomplete extraction is a skip signal, not an error
		r.logger.Debug().Str("location", result.CanonicalURL).Msg("Extraction incomplete, skipping item")
		return
	}
	if !outreach.Qualifies(result.MetricValue, r.config.Extraction.LikeThreshold, result.IsAd, result.IsLive) {
		return
	}

	reel := &models.Reel{
		ID:           fmt.Sprintf("reel_%d_%s", account.ID, result.UniqueKey),
		AccountID:    account.ID,
		URL:          result.CanonicalURL,
		Author:       result.Identity,
		MediaID:      result.MediaID,
		LikeCount:    result.MetricValue,
		IsAd:         result.IsAd,
		IsLive:       result.IsLive,
		DiscoveredAt: time.Now(),
	}
	created, err := r.storage.ReelStorage().SaveReel(ctx, reel)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", reel.URL).Msg("Failed to save reel")
		return
	}
	if !created {
		r.logger.Debug().Str("url", reel.URL).Msg("Reel already known")
		return
	}

	r.logger.Info().
		Str("author", reel.Author).
		Int("likes", reel.LikeCount).
		Str("url", reel.URL).
		Msg("Qualifying reel discovered")

	if !r.config.Outreach.Enabled {
		return
	}
	if r.config.Outreach.MaxPerRun > 0 && *sent >= r.config.Outreach.MaxPerRun {
		return
	}

	wasSent, err := pipeline.Process(ctx, reel, reel.Author, promptRef)
	if err != nil {
		// Generation failures are terminal for this attempt only
		r.logger.Warn().Err(err).Str("target", reel.Author).Msg("Outreach attempt failed")
		return
	}
	if wasSent {
		*sent++
	}
}
