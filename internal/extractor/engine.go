package extractor

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
)

// Result is one full extraction of the currently focused reel
type Result struct {
	MetricText   string // raw rendered count, e.g. "57.3K"
	MetricValue  int    // parsed count
	Identity     string // author handle
	MediaID      string // platform item id when resolvable
	CanonicalURL string
	UniqueKey    string
	Playing      bool
	IsAd         bool
	IsLive       bool
	Trace        []string // which strategy produced each field, for debugging
}

// Complete reports whether the result carries enough to process the item.
// An incomplete result is a skip signal, not an error.
func (r *Result) Complete() bool {
	return r.Identity != "" && r.MetricText != ""
}

// Engine extracts the focused reel from a live page and advances the feed.
// It is written entirely against the BrowserPage driver surface.
type Engine struct {
	page   interfaces.BrowserPage
	config common.ExtractionConfig
	logger arbor.ILogger
}

// NewEngine creates an extraction engine over a page
func NewEngine(page interfaces.BrowserPage, config common.ExtractionConfig, logger arbor.ILogger) *Engine {
	return &Engine{page: page, config: config, logger: logger}
}

// ExtractMetricOnly is the cheap gate: locate the most plausible engagement
// count near the focused media without resolving identity. Most reels fall
// under the threshold, so the expensive full pass is usually skipped.
func (e *Engine) ExtractMetricOnly(ctx context.Context) (string, error) {
	var p probe
	if err := e.page.Evaluate(ctx, fingerprintJS, &p); err != nil {
		return "", fmt.Errorf("metric probe failed: %w", err)
	}
	return p.Token, nil
}

// ExtractFull runs the complete extraction: one in-page snapshot pass, then
// the Go-side strategy chains for metric, identity and item id.
//
// DOM lag after navigation is expected: when the resolved item id disagrees
// with the id embedded in the current location, the snapshot is taken once
// more before the result is accepted.
func (e *Engine) ExtractFull(ctx context.Context) (*Result, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	result := Interpret(snap)

	// The id the container links claim vs. the id the address bar claims.
	// Right after an advance the DOM can lag the location by a beat.
	locationID := mediaIDFromURL(snap.Location)
	containerID := mediaIDFromLinks(snap.Links)
	if containerID != "" && locationID != "" && containerID != locationID {
		e.logger.Debug().
			Str("extracted", containerID).
			Str("location", locationID).
			Msg("Item id disagrees with location - re-running extraction once")
		snap, err = e.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		result = Interpret(snap)
	}

	return result, nil
}

func (e *Engine) snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := e.page.Evaluate(ctx, snapshotJS(e.config.MaxAncestorDepth), &snap); err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}
	return &snap, nil
}

// Interpret runs the strategy chains over a snapshot. Split out so the
// interpretation layer is testable without a browser.
func Interpret(snap *Snapshot) *Result {
	result := &Result{Playing: snap.Playing, IsAd: snap.Sponsored, IsLive: snap.Live}

	var via string
	result.MetricText, via = ResolveMetric(snap)
	if via != "" {
		result.Trace = append(result.Trace, "metric:"+via)
	}
	result.MetricValue = ParseCompactCount(result.MetricText)

	result.Identity, via = ResolveIdentity(snap)
	if via != "" {
		result.Trace = append(result.Trace, "identity:"+via)
	}

	result.MediaID, via = ResolveMediaID(snap)
	if via != "" {
		result.Trace = append(result.Trace, "media:"+via)
	}

	if result.MediaID != "" {
		result.CanonicalURL = "https://www.instagram.com/reel/" + result.MediaID + "/"
	} else {
		result.CanonicalURL = snap.Location
	}

	// The (identity, item id) pair is the strong de-duplication key; when the
	// id is unresolvable, (identity, metric) is a weaker but still useful one
	switch {
	case result.Identity != "" && result.MediaID != "":
		result.UniqueKey = result.Identity + "|" + result.MediaID
	case result.Identity != "" && result.MetricText != "":
		result.UniqueKey = result.Identity + "|" + result.MetricText
	}

	return result
}
