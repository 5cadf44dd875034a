package interfaces

import (
	"context"
	"time"

	"github.com/SamiESK/insta-scrapper/internal/models"
)

// BrowserPage is the driver surface the extraction and outreach code is
// written against. The chromedp implementation lives in internal/browser;
// tests substitute fakes.
type BrowserPage interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	// SetValue assigns the element's value/textContent directly and dispatches
	// an input event - the fast path for filling composers
	SetValue(ctx context.Context, selector, value string) error
	// SendKeys types into the element with simulated keystrokes - the slow
	// fallback when SetValue does not verify
	SendKeys(ctx context.Context, selector, text string) error
	// PressKey sends a bare key event to the focused element (e.g. ArrowDown,
	// Enter, Escape)
	PressKey(ctx context.Context, key string) error
	Evaluate(ctx context.Context, expression string, out any) error
	Cookies(ctx context.Context) ([]models.Cookie, error)
	SetCookies(ctx context.Context, cookies []models.Cookie) error
	Close() error
}

// MessageGenerator produces an outreach message from a prompt reference and
// an optional identity hint. Implemented by the LLM providers.
type MessageGenerator interface {
	Generate(ctx context.Context, promptRef, identityHint string) (string, error)
}
