package outreach

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/models"
)

// fakeBrowser simulates the driver surface for delivery tests. Selectors in
// hidden never become visible; ignoreSetValue simulates a composer that
// swallows direct assignment.
type fakeBrowser struct {
	hidden         map[string]bool
	ignoreSetValue bool

	navigations  []string
	composerText string
	sentKeys     []string
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	return nil
}
func (f *fakeBrowser) Location(ctx context.Context) (string, error) { return "", nil }

func (f *fakeBrowser) WaitVisible(ctx context.Context, sel string, d time.Duration) error {
	if f.hidden[sel] {
		return fmt.Errorf("timeout waiting for %q", sel)
	}
	return nil
}

func (f *fakeBrowser) Click(ctx context.Context, sel string) error {
	if f.hidden[sel] {
		return fmt.Errorf("%q not clickable", sel)
	}
	return nil
}

func (f *fakeBrowser) SetValue(ctx context.Context, sel, value string) error {
	if !f.ignoreSetValue {
		f.composerText = value
	}
	return nil
}

func (f *fakeBrowser) SendKeys(ctx context.Context, sel, text string) error {
	f.composerText = text
	return nil
}

func (f *fakeBrowser) PressKey(ctx context.Context, key string) error {
	f.sentKeys = append(f.sentKeys, key)
	return nil
}

func (f *fakeBrowser) Evaluate(ctx context.Context, expression string, out any) error {
	if p, ok := out.(*int); ok {
		*p = len(f.composerText)
	}
	return nil
}

func (f *fakeBrowser) Cookies(ctx context.Context) ([]models.Cookie, error)    { return nil, nil }
func (f *fakeBrowser) SetCookies(ctx context.Context, c []models.Cookie) error { return nil }
func (f *fakeBrowser) Close() error                                            { return nil }

type fakeGenerator struct {
	message string
	err     error
	calls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, promptRef, identityHint string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.message, nil
}

type fakeMessages struct {
	records map[string]*models.DirectMessage
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{records: make(map[string]*models.DirectMessage)}
}

func (f *fakeMessages) key(reelID, target string) string { return reelID + "|" + target }

func (f *fakeMessages) HasMessage(ctx context.Context, reelID, targetUser string) (bool, error) {
	_, ok := f.records[f.key(reelID, targetUser)]
	return ok, nil
}

func (f *fakeMessages) SaveMessage(ctx context.Context, msg *models.DirectMessage) error {
	k := f.key(msg.ReelID, msg.TargetUser)
	if _, ok := f.records[k]; ok {
		return fmt.Errorf("duplicate outreach record for %s", k)
	}
	f.records[k] = msg
	return nil
}

func (f *fakeMessages) ListMessages(ctx context.Context, reelID string) ([]*models.DirectMessage, error) {
	var out []*models.DirectMessage
	for _, m := range f.records {
		if m.ReelID == reelID {
			out = append(out, m)
		}
	}
	return out, nil
}

func testReel() *models.Reel {
	return &models.Reel{
		ID:        "reel_1",
		AccountID: 1,
		URL:       "https://www.instagram.com/reel/DAbc123xy/",
		Author:    "creator.one",
		LikeCount: 257000,
	}
}

func newTestPipeline(page *fakeBrowser, gen *fakeGenerator, msgs *fakeMessages) *Pipeline {
	config := common.OutreachConfig{Enabled: true, MaxPerRun: 10, DefaultTemplate: "friendly collab intro"}
	return NewPipeline(page, gen, msgs, config, common.GetLogger())
}

func TestQualifies(t *testing.T) {
	assert.True(t, Qualifies(257000, 100000, false, false))
	assert.True(t, Qualifies(100000, 100000, false, false)) // threshold is inclusive
	assert.False(t, Qualifies(99999, 100000, false, false))
	assert.False(t, Qualifies(257000, 100000, true, false)) // ads never qualify
	assert.False(t, Qualifies(257000, 100000, false, true)) // livestreams never qualify
}

func TestProcessSendsAndRecordsOutcome(t *testing.T) {
	page := &fakeBrowser{}
	gen := &fakeGenerator{message: "Hey, loved the reel!"}
	msgs := newFakeMessages()
	pipeline := newTestPipeline(page, gen, msgs)

	sent, err := pipeline.Process(context.Background(), testReel(), "creator.one", "friendly collab intro")
	require.NoError(t, err)
	assert.True(t, sent)

	records, err := msgs.ListMessages(context.Background(), "reel_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Sent)
	require.NotNil(t, records[0].SentAt)
	assert.Equal(t, "Hey, loved the reel!", records[0].Message)
	assert.Equal(t, "creator.one", records[0].TargetUser)
}

func TestProcessSkipsDuplicateTarget(t *testing.T) {
	page := &fakeBrowser{}
	gen := &fakeGenerator{message: "Hey again!"}
	msgs := newFakeMessages()
	pipeline := newTestPipeline(page, gen, msgs)

	reel := testReel()
	sent, err := pipeline.Process(context.Background(), reel, "creator.one", "x")
	require.NoError(t, err)
	assert.True(t, sent)

	// Second attempt for the same (reel, target) pair is a silent skip
	sent, err = pipeline.Process(context.Background(), reel, "creator.one", "x")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, gen.calls, "duplicate candidates must not reach the generator")

	records, _ := msgs.ListMessages(context.Background(), "reel_1")
	assert.Len(t, records, 1)
}

func TestProcessGenerationFailureWritesNothing(t *testing.T) {
	page := &fakeBrowser{}
	gen := &fakeGenerator{err: fmt.Errorf("%w: provider returned empty content", ErrGeneration)}
	msgs := newFakeMessages()
	pipeline := newTestPipeline(page, gen, msgs)

	sent, err := pipeline.Process(context.Background(), testReel(), "creator.one", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))
	assert.False(t, sent)

	records, _ := msgs.ListMessages(context.Background(), "reel_1")
	assert.Empty(t, records, "no delivery attempted, so no record")
}

func TestProcessDeliveryFailureRecordsUnsent(t *testing.T) {
	// No message trigger ever appears on the profile
	page := &fakeBrowser{hidden: map[string]bool{
		messageTriggers[0]: true,
		messageTriggers[1]: true,
		messageTriggers[2]: true,
	}}
	gen := &fakeGenerator{message: "Hey!"}
	msgs := newFakeMessages()
	pipeline := newTestPipeline(page, gen, msgs)

	sent, err := pipeline.Process(context.Background(), testReel(), "creator.one", "x")
	require.NoError(t, err, "delivery failure is bookkept, not propagated")
	assert.False(t, sent)

	records, _ := msgs.ListMessages(context.Background(), "reel_1")
	require.Len(t, records, 1)
	assert.False(t, records[0].Sent)
	assert.Nil(t, records[0].SentAt)

	// The browser was steered back to the feed despite the failure
	assert.Contains(t, page.navigations, feedURL)
}

func TestDeliverFallsBackToKeystrokes(t *testing.T) {
	page := &fakeBrowser{ignoreSetValue: true}
	pipeline := newTestPipeline(page, &fakeGenerator{}, newFakeMessages())

	err := pipeline.Deliver(context.Background(), "creator.one", "Hey, loved the reel!")
	require.NoError(t, err)
	assert.Equal(t, "Hey, loved the reel!", page.composerText)
}

func TestDeliverReturnsToFeedOnSuccess(t *testing.T) {
	page := &fakeBrowser{}
	pipeline := newTestPipeline(page, &fakeGenerator{}, newFakeMessages())

	require.NoError(t, pipeline.Deliver(context.Background(), "creator.one", "Hey!"))
	require.NotEmpty(t, page.navigations)
	assert.Equal(t, "https://www.instagram.com/creator.one/", page.navigations[0])
	assert.Equal(t, feedURL, page.navigations[len(page.navigations)-1])
}

func TestTemplateForPrefersAccountTemplate(t *testing.T) {
	pipeline := newTestPipeline(&fakeBrowser{}, &fakeGenerator{}, newFakeMessages())

	withTemplate := &models.Account{MessageTemplate: "custom pitch"}
	assert.Equal(t, "custom pitch", pipeline.TemplateFor(withTemplate))

	without := &models.Account{MessageTemplate: "  "}
	assert.Equal(t, "friendly collab intro", pipeline.TemplateFor(without))
}
