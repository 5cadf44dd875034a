package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

// ErrDelivery marks a failed message delivery. Recorded as sent=false; the
// run continues with the next item.
var ErrDelivery = errors.New("outreach: message delivery failed")

const feedURL = "https://www.instagram.com/reels/"

// The target UI renames and restyles its controls constantly, so every
// interaction runs down an ordered selector chain until one works.
var (
	messageTriggers = []string{
		`div[role="button"][aria-label="Message"]`,
		`a[href^="/direct/t/"]`,
		`div[role="button"][tabindex="0"]`,
	}
	composerSelectors = []string{
		`textarea[placeholder="Message..."]`,
		`div[contenteditable="true"][role="textbox"]`,
		`div[aria-label="Message"][contenteditable="true"]`,
	}
	sendButtons = []string{
		`div[role="button"][aria-label="Send"]`,
		`button[type="submit"]`,
	}
	closeControls = []string{
		`svg[aria-label="Close"]`,
		`div[role="button"][aria-label="Close"]`,
	}
)

// Pipeline qualifies discovered reels, generates a message for the author
// and delivers it through the UI, recording exactly one outcome row per
// attempted (reel, target) pair.
type Pipeline struct {
	page      interfaces.BrowserPage
	generator interfaces.MessageGenerator
	messages  interfaces.MessageStorage
	config    common.OutreachConfig
	logger    arbor.ILogger
}

// NewPipeline creates an outreach pipeline bound to one browser session
func NewPipeline(
	page interfaces.BrowserPage,
	generator interfaces.MessageGenerator,
	messages interfaces.MessageStorage,
	config common.OutreachConfig,
	logger arbor.ILogger,
) *Pipeline {
	return &Pipeline{
		page:      page,
		generator: generator,
		messages:  messages,
		config:    config,
		logger:    logger,
	}
}

// Qualifies reports whether an extracted item is eligible for outreach:
// metric at or above the threshold and neither an ad nor a livestream
func Qualifies(metricValue, threshold int, isAd, isLive bool) bool {
	return metricValue >= threshold && !isAd && !isLive
}

// Process runs the outreach flow for one discovered reel: uniqueness check,
// generation, delivery, bookkeeping.
//
// Exactly one outcome row is written per attempted delivery; a duplicate
// candidate or a generation failure writes nothing. Returns whether the
// message was sent.
func (p *Pipeline) Process(ctx context.Context, reel *models.Reel, targetUser, promptRef string) (bool, error) {
	exists, err := p.messages.HasMessage(ctx, reel.ID, targetUser)
	if err != nil {
		return false, fmt.Errorf("outreach dedup check: %w", err)
	}
	if exists {
		p.logger.Debug().
			Str("reel_id", reel.ID).
			Str("target", targetUser).
			Msg("Target already messaged for this reel, skipping")
		return false, nil
	}

	message, err := p.generator.Generate(ctx, promptRef, targetUser)
	if err != nil {
		// No delivery was attempted, so no record is written
		return false, err
	}

	deliveryErr := p.Deliver(ctx, targetUser, message)

	record := &models.DirectMessage{
		ID:         "dm_" + uuid.New().String(),
		ReelID:     reel.ID,
		TargetUser: targetUser,
		Message:    message,
		CreatedAt:  time.Now(),
	}
	if deliveryErr == nil {
		now := time.Now()
		record.Sent = true
		record.SentAt = &now
	}

	if err := p.messages.SaveMessage(ctx, record); err != nil {
		return record.Sent, fmt.Errorf("save outreach record: %w", err)
	}

	if deliveryErr != nil {
		p.logger.Warn().
			Err(deliveryErr).
			Str("target", targetUser).
			Str("reel_id", reel.ID).
			Msg("Delivery failed, recorded as unsent")
		return false, nil
	}

	p.logger.Info().
		Str("target", targetUser).
		Str("reel_id", reel.ID).
		Msg("Outreach message sent")
	return true, nil
}

// Deliver opens the target's messaging surface, fills the composer, submits
// and closes. On any failure it still tries to put the browser back on the
// feed so the outer loop can continue.
func (p *Pipeline) Deliver(ctx context.Context, targetUser, message string) (err error) {
	defer func() {
		if err != nil {
			if navErr := p.page.Navigate(ctx, feedURL); navErr != nil {
				p.logger.Warn().Err(navErr).Msg("Failed to return to feed after delivery failure")
			}
		}
	}()

	profileURL := "https://www.instagram.com/" + targetUser + "/"
	if err := p.page.Navigate(ctx, profileURL); err != nil {
		return fmt.Errorf("%w: open profile: %v", ErrDelivery, err)
	}

	if err := p.clickFirst(ctx, messageTriggers); err != nil {
		return fmt.Errorf("%w: no message trigger found: %v", ErrDelivery, err)
	}

	composer, err := p.findComposer(ctx)
	if err != nil {
		return fmt.Errorf("%w: composer not found: %v", ErrDelivery, err)
	}

	if err := p.fillComposer(ctx, composer, message); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	// Submit: button first, confirm key as fallback
	if err := p.clickFirst(ctx, sendButtons); err != nil {
		if err := p.page.PressKey(ctx, "Enter"); err != nil {
			return fmt.Errorf("%w: submit failed: %v", ErrDelivery, err)
		}
	}

	// Close the composer: close control first, cancel key as fallback.
	// A composer that will not close is not a delivery failure.
	if err := p.clickFirst(ctx, closeControls); err != nil {
		if err := p.page.PressKey(ctx, "Escape"); err != nil {
			p.logger.Debug().Err(err).Msg("Could not close composer, continuing")
		}
	}

	if navErr := p.page.Navigate(ctx, feedURL); navErr != nil {
		p.logger.Warn().Err(navErr).Msg("Failed to return to feed after delivery")
	}
	return nil
}

// fillComposer sets the message via direct assignment first, verifies the
// composer actually holds it, and falls back to simulated typing when the
// page ignored the fast path
func (p *Pipeline) fillComposer(ctx context.Context, selector, message string) error {
	if err := p.page.SetValue(ctx, selector, message); err == nil {
		if length, err := p.composerLength(ctx, selector); err == nil && verifyLength(length, len(message)) {
			return nil
		}
		p.logger.Debug().
			Str("selector", selector).
			Msg("Direct assignment did not verify, falling back to keystrokes")
	}

	if err := p.page.SendKeys(ctx, selector, message); err != nil {
		return fmt.Errorf("fill composer: %v", err)
	}
	length, err := p.composerLength(ctx, selector)
	if err != nil {
		return fmt.Errorf("verify composer: %v", err)
	}
	if !verifyLength(length, len(message)) {
		return fmt.Errorf("composer holds %d of %d chars after typing", length, len(message))
	}
	return nil
}

// verifyLength accepts the fill when at least 90% of the intended content
// made it into the composer
func verifyLength(got, want int) bool {
	if want == 0 {
		return true
	}
	return got*10 >= want*9
}

func (p *Pipeline) composerLength(ctx context.Context, selector string) (int, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return -1;
		return ('value' in el && el.value !== undefined ? el.value : el.textContent || '').length;
	})()`, selector)

	var length int
	if err := p.page.Evaluate(ctx, script, &length); err != nil {
		return 0, err
	}
	if length < 0 {
		return 0, fmt.Errorf("composer %q disappeared", selector)
	}
	return length, nil
}

// clickFirst walks a selector chain, clicking the first element that appears
func (p *Pipeline) clickFirst(ctx context.Context, selectors []string) error {
	var lastErr error
	for _, sel := range selectors {
		if err := p.page.WaitVisible(ctx, sel, 3*time.Second); err != nil {
			lastErr = err
			continue
		}
		if err := p.page.Click(ctx, sel); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("empty selector chain")
	}
	return lastErr
}

// findComposer returns the first composer selector that becomes visible
func (p *Pipeline) findComposer(ctx context.Context) (string, error) {
	var lastErr error
	for _, sel := range composerSelectors {
		if err := p.page.WaitVisible(ctx, sel, 3*time.Second); err != nil {
			lastErr = err
			continue
		}
		return sel, nil
	}
	if lastErr == nil {
		lastErr = errors.New("empty selector chain")
	}
	return "", lastErr
}

// TemplateFor picks the prompt reference for an account: its own template
// when set, otherwise the configured default
func (p *Pipeline) TemplateFor(account *models.Account) string {
	if t := strings.TrimSpace(account.MessageTemplate); t != "" {
		return t
	}
	return p.config.DefaultTemplate
}
