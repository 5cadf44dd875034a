package extractor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

// fakePage scripts the browser driver: snapshot evaluations pop from the
// snapshots queue, fingerprint probes pop from probes. The last element
// sticks once a queue drains.
type fakePage struct {
	mu        sync.Mutex
	snapshots []Snapshot
	probes    []probe
	keypresses int
}

func (f *fakePage) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakePage) Location(ctx context.Context) (string, error)   { return "", nil }
func (f *fakePage) WaitVisible(ctx context.Context, sel string, d time.Duration) error {
	return nil
}
func (f *fakePage) Click(ctx context.Context, sel string) error             { return nil }
func (f *fakePage) SetValue(ctx context.Context, sel, value string) error   { return nil }
func (f *fakePage) SendKeys(ctx context.Context, sel, text string) error    { return nil }
func (f *fakePage) Cookies(ctx context.Context) ([]models.Cookie, error)    { return nil, nil }
func (f *fakePage) SetCookies(ctx context.Context, c []models.Cookie) error { return nil }
func (f *fakePage) Close() error                                            { return nil }

func (f *fakePage) PressKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keypresses++
	return nil
}

func (f *fakePage) Evaluate(ctx context.Context, expression string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	marshalInto := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}

	if strings.Contains(expression, "pageTokens") {
		s := f.snapshots[0]
		if len(f.snapshots) > 1 {
			f.snapshots = f.snapshots[1:]
		}
		return marshalInto(s)
	}

	p := f.probes[0]
	if len(f.probes) > 1 {
		f.probes = f.probes[1:]
	}
	return marshalInto(p)
}

func testExtractionConfig() common.ExtractionConfig {
	return common.ExtractionConfig{
		LikeThreshold:       100000,
		MaxAncestorDepth:    20,
		AdvanceTimeout:      "200ms",
		AdvanceRetryTimeout: "100ms",
		AdvancePollInterval: "20ms",
		MaxStuckAdvances:    3,
	}
}

func TestExtractFullComposesStrongKey(t *testing.T) {
	page := &fakePage{snapshots: []Snapshot{*feedSnapshot()}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	result, err := engine.ExtractFull(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "257K", result.MetricText)
	assert.Equal(t, 257000, result.MetricValue)
	assert.Equal(t, "creator.one", result.Identity)
	assert.Equal(t, "DAbc123xy", result.MediaID)
	assert.Equal(t, "https://www.instagram.com/reel/DAbc123xy/", result.CanonicalURL)
	assert.Equal(t, "creator.one|DAbc123xy", result.UniqueKey)
	assert.True(t, result.Complete())
}

func TestExtractFullWeakKeyWithoutMediaID(t *testing.T) {
	snap := feedSnapshot()
	snap.Location = "https://www.instagram.com/"
	snap.Links = []Link{{Href: "/creator.one/", Text: "creator.one"}}

	page := &fakePage{snapshots: []Snapshot{*snap}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	result, err := engine.ExtractFull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "creator.one|257K", result.UniqueKey)
}

func TestExtractFullRetriesOnLocationMismatch(t *testing.T) {
	// First snapshot: the container still shows the previous reel while the
	// location already moved on - classic DOM lag right after an advance
	stale := feedSnapshot()
	stale.Location = "https://www.instagram.com/reels/DNewer99x/"

	fresh := feedSnapshot()
	fresh.Location = "https://www.instagram.com/reels/DNewer99x/"
	fresh.Links = append([]Link{{Href: "/creator.one/reel/DNewer99x/"}}, fresh.Links...)

	// In the stale snapshot the container link resolves the OLD id while the
	// location holds the new one
	stale.Links = []Link{{Href: "/creator.one/reel/DAbc123xy/"}, {Href: "/creator.one/", Text: "creator.one"}}

	page := &fakePage{snapshots: []Snapshot{*stale, *fresh}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	result, err := engine.ExtractFull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DNewer99x", result.MediaID)
}

func TestExtractIncompleteIsSkipNotError(t *testing.T) {
	page := &fakePage{snapshots: []Snapshot{{Location: "https://www.instagram.com/", Found: false}}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	result, err := engine.ExtractFull(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Complete())
}

func TestExtractMetricOnly(t *testing.T) {
	page := &fakePage{probes: []probe{{Location: "https://www.instagram.com/reels/DAbc123xy/", Token: "8M"}}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	token, err := engine.ExtractMetricOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8M", token)
	assert.Equal(t, 8000000, ParseCompactCount(token))
}

func TestAdvanceToNextVerifiedByLocationChange(t *testing.T) {
	page := &fakePage{probes: []probe{
		{Location: "https://www.instagram.com/reels/DAbc123xy/", Token: "257K"}, // before
		{Location: "https://www.instagram.com/reels/DNext456z/", Token: "12K"},  // after keypress
	}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	assert.True(t, engine.AdvanceToNext(context.Background()))
	assert.Equal(t, 1, page.keypresses)
}

func TestAdvanceToNextVerifiedByFingerprintChange(t *testing.T) {
	// Location never changes (feed root) but the focused-item token does
	page := &fakePage{probes: []probe{
		{Location: "https://www.instagram.com/", Token: "257K"},
		{Location: "https://www.instagram.com/", Token: "31K"},
	}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	assert.True(t, engine.AdvanceToNext(context.Background()))
}

func TestAdvanceToNextStuckReturnsFalse(t *testing.T) {
	page := &fakePage{probes: []probe{
		{Location: "https://www.instagram.com/reels/DAbc123xy/", Token: "257K"},
	}}
	engine := NewEngine(page, testExtractionConfig(), common.GetLogger())

	assert.False(t, engine.AdvanceToNext(context.Background()))
	// Stuck advances issue the keypress twice before giving up
	assert.Equal(t, 2, page.keypresses)
}
