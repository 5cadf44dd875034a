package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

var (
	// ErrAuthentication covers the login failure family: form not found,
	// credentials rejected, unresolvable challenge. Terminal for the run,
	// recoverable on a later attempt.
	ErrAuthentication = errors.New("runner: authentication failed")

	// ErrSessionExpired means the saved session no longer authenticates.
	// Triggers a re-login, never a fatal abort.
	ErrSessionExpired = errors.New("runner: saved session expired")
)

const (
	loginURL = "https://www.instagram.com/accounts/login/"
	feedURL  = "https://www.instagram.com/reels/"
)

// loginStateJS classifies the current page in one cheap pass:
// "ok" (authenticated), "login" (credential form), "challenge" (security
// code prompt), "rejected" (error banner), "pending" (still settling).
const loginStateJS = `(() => {
	// loginState probe
	if (document.querySelector('svg[aria-label="Home"]') ||
		document.querySelector('a[href="/direct/inbox/"]')) return "ok";
	if (document.querySelector('input[name="verificationCode"]') ||
		document.querySelector('input[aria-label="Security code"]')) return "challenge";
	if (document.querySelector('#slfErrorAlert') ||
		document.querySelector('div[role="alert"]')) return "rejected";
	if (document.querySelector('input[name="username"]')) return "login";
	return "pending";
})()`

var (
	challengeInputs = []string{
		`input[name="verificationCode"]`,
		`input[aria-label="Security code"]`,
	}
	loginSubmitButtons = []string{
		`button[type="submit"]`,
		`div[role="button"][aria-label="Log in"]`,
	}
)

func (r *Runner) loginState(ctx context.Context, page interfaces.BrowserPage) (string, error) {
	var state string
	if err := page.Evaluate(ctx, loginStateJS, &state); err != nil {
		return "", err
	}
	return state, nil
}

// login establishes a fresh authenticated session with the account's stored
// credentials, resolving an email challenge when a mailbox is configured
func (r *Runner) login(ctx context.Context, page interfaces.BrowserPage, account *models.Account) error {
	if account.EncryptedPassword == "" {
		return fmt.Errorf("%w: account %d has no stored password", ErrAuthentication, account.ID)
	}
	password, err := r.vault.Decrypt(account.EncryptedPassword)
	if err != nil {
		return fmt.Errorf("%w: cannot decrypt password: %v", ErrAuthentication, err)
	}

	r.logger.Info().Int("account_id", account.ID).Str("username", account.Username).Msg("Performing login")

	if err := page.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if err := page.WaitVisible(ctx, `input[name="username"]`, 15*time.Second); err != nil {
		return fmt.Errorf("%w: login form not found: %v", ErrAuthentication, err)
	}

	if err := r.fill(ctx, page, `input[name="username"]`, account.Username); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if err := r.fill(ctx, page, `input[name="password"]`, password); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if err := r.clickFirst(ctx, page, loginSubmitButtons); err != nil {
		if err := page.PressKey(ctx, "Enter"); err != nil {
			return fmt.Errorf("%w: cannot submit login form: %v", ErrAuthentication, err)
		}
	}

	state, err := r.awaitLoginOutcome(ctx, page)
	if err != nil {
		return err
	}

	switch state {
	case "ok":
		return nil
	case "challenge":
		return r.resolveChallenge(ctx, page)
	case "rejected":
		return fmt.Errorf("%w: credentials rejected for %s", ErrAuthentication, account.Username)
	default:
		return fmt.Errorf("%w: login outcome unresolved (state %q)", ErrAuthentication, state)
	}
}

// awaitLoginOutcome polls the page until it settles into a decisive state
func (r *Runner) awaitLoginOutcome(ctx context.Context, page interfaces.BrowserPage) (string, error) {
	deadline := time.Now().Add(r.loginTimeout)
	state := "pending"

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.pollInterval):
		}

		current, err := r.loginState(ctx, page)
		if err != nil {
			continue
		}
		state = current
		if state == "ok" || state == "challenge" || state == "rejected" {
			return state, nil
		}
	}
	return state, nil
}

// resolveChallenge fetches the emailed security code and submits it. Without
// a configured mailbox the challenge needs manual intervention.
func (r *Runner) resolveChallenge(ctx context.Context, page interfaces.BrowserPage) error {
	if !r.codes.Configured() {
		return fmt.Errorf("%w: verification challenge requires manual intervention (no mailbox configured)", ErrAuthentication)
	}

	r.logger.Info().Msg("Login challenged, retrieving verification code from mailbox")
	code, err := r.codes.WaitForCode(ctx)
	if err != nil {
		return fmt.Errorf("%w: challenge code retrieval failed: %v", ErrAuthentication, err)
	}

	filled := false
	for _, sel := range challengeInputs {
		if err := r.fill(ctx, page, sel, code); err == nil {
			filled = true
			break
		}
	}
	if !filled {
		return fmt.Errorf("%w: challenge input not found", ErrAuthentication)
	}

	if err := r.clickFirst(ctx, page, loginSubmitButtons); err != nil {
		if err := page.PressKey(ctx, "Enter"); err != nil {
			return fmt.Errorf("%w: cannot submit challenge code: %v", ErrAuthentication, err)
		}
	}

	state, err := r.awaitLoginOutcome(ctx, page)
	if err != nil {
		return err
	}
	if state != "ok" {
		return fmt.Errorf("%w: challenge code did not authenticate (state %q)", ErrAuthentication, state)
	}
	return nil
}

// fill sets an input's value directly and falls back to typing
func (r *Runner) fill(ctx context.Context, page interfaces.BrowserPage, selector, value string) error {
	if err := page.SetValue(ctx, selector, value); err == nil {
		return nil
	}
	return page.SendKeys(ctx, selector, value)
}

func (r *Runner) clickFirst(ctx context.Context, page interfaces.BrowserPage, selectors []string) error {
	var lastErr error
	for _, sel := range selectors {
		if err := page.WaitVisible(ctx, sel, 3*time.Second); err != nil {
			lastErr = err
			continue
		}
		if err := page.Click(ctx, sel); err != nil {
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
