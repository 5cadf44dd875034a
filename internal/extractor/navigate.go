package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/SamiESK/insta-scrapper/internal/common"
)

// ErrNavigationStuck is returned by the collection loop when consecutive
// advance failures exceed the configured budget. Terminal for the run,
// recoverable on a later attempt.
var ErrNavigationStuck = errors.New("extractor: navigation stuck")

// AdvanceToNext records the current item's fingerprint, issues a single
// "move to next" keypress, then polls for either the location's item id or
// the DOM fingerprint to change. When neither changes within the timeout a
// second keypress is issued and the poll repeats once with a shorter window.
//
// Returns true only on a verified change. Callers must treat false as
// "stuck" and count it toward the consecutive-failure budget - never as
// silent success.
func (e *Engine) AdvanceToNext(ctx context.Context) bool {
	before, err := e.fingerprint(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to read fingerprint before advancing")
		return false
	}

	if err := e.page.PressKey(ctx, "ArrowDown"); err != nil {
		e.logger.Warn().Err(err).Msg("Advance keypress failed")
		return false
	}

	timeout := common.ParseDuration(e.config.AdvanceTimeout, 6*time.Second)
	if e.pollForChange(ctx, before, timeout) {
		return true
	}

	// The feed sometimes swallows the first keypress mid-animation; one more
	// try with a shorter window before declaring the advance stuck
	e.logger.Debug().Msg("No change after first advance keypress - retrying once")
	if err := e.page.PressKey(ctx, "ArrowDown"); err != nil {
		e.logger.Warn().Err(err).Msg("Advance retry keypress failed")
		return false
	}

	retryTimeout := common.ParseDuration(e.config.AdvanceRetryTimeout, 3*time.Second)
	return e.pollForChange(ctx, before, retryTimeout)
}

// pollForChange polls the fingerprint at the configured interval until it
// differs from before or the window closes. Poll, don't spin.
func (e *Engine) pollForChange(ctx context.Context, before fingerprint, timeout time.Duration) bool {
	interval := common.ParseDuration(e.config.AdvancePollInterval, 250*time.Millisecond)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}

		current, err := e.fingerprint(ctx)
		if err != nil {
			continue
		}
		if current.changedFrom(before) {
			return true
		}
	}
	return false
}

// fingerprint is the (item id, metric token) pair used to detect whether
// navigation actually moved to a new item
type fingerprint struct {
	mediaID string
	token   string
}

func (f fingerprint) changedFrom(before fingerprint) bool {
	if f.mediaID != before.mediaID {
		return true
	}
	return f.token != before.token
}

// fingerprint reads the lightweight DOM-only probe - not the full extraction
func (e *Engine) fingerprint(ctx context.Context) (fingerprint, error) {
	var p probe
	if err := e.page.Evaluate(ctx, fingerprintJS, &p); err != nil {
		return fingerprint{}, err
	}
	return fingerprint{
		mediaID: mediaIDFromURL(p.Location),
		token:   p.Token,
	}, nil
}
