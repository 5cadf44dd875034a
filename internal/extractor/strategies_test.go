package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedSnapshot() *Snapshot {
	return &Snapshot{
		Location: "https://www.instagram.com/reels/DAbc123xy/",
		Found:    true,
		Playing:  true,
		LikeAdjacent:    []string{"257K"},
		ContainerTokens: []string{"257K", "1,204", "12"},
		PageTokens:      []string{"99", "257K"},
		Links: []Link{
			{Href: "/creator.one/", Text: "creator.one", Label: ""},
			{Href: "/creator.one/reels/", Text: "", Label: ""},
			{Href: "/reels/audio/123/", Text: "Original audio", Label: ""},
		},
	}
}

func TestResolveMetricPrefersLikeAdjacent(t *testing.T) {
	snap := feedSnapshot()
	metric, via := ResolveMetric(snap)
	assert.Equal(t, "257K", metric)
	assert.Equal(t, "like-adjacent", via)
}

func TestResolveMetricFallsBackToContainer(t *testing.T) {
	snap := feedSnapshot()
	snap.LikeAdjacent = nil
	metric, via := ResolveMetric(snap)
	assert.Equal(t, "257K", metric)
	assert.Equal(t, "container-scan", via)
}

func TestResolveMetricFallsBackToPage(t *testing.T) {
	snap := feedSnapshot()
	snap.LikeAdjacent = nil
	snap.ContainerTokens = []string{"likes", "not-a-count"}
	metric, via := ResolveMetric(snap)
	assert.Equal(t, "99", metric)
	assert.Equal(t, "page-fallback", via)
}

func TestResolveMetricNothingFound(t *testing.T) {
	metric, via := ResolveMetric(&Snapshot{})
	assert.Equal(t, "", metric)
	assert.Equal(t, "", via)
}

func TestResolveIdentityLinkToken(t *testing.T) {
	identity, via := ResolveIdentity(feedSnapshot())
	assert.Equal(t, "creator.one", identity)
	assert.Equal(t, "link-token", via)
}

func TestResolveIdentityAriaLabel(t *testing.T) {
	snap := &Snapshot{Links: []Link{
		{Href: "/x/", Text: "", Label: "Reel by creator.two"},
	}}
	identity, via := ResolveIdentity(snap)
	assert.Equal(t, "creator.two", identity)
	assert.Equal(t, "aria-label", via)
}

func TestResolveIdentityHrefPath(t *testing.T) {
	snap := &Snapshot{Links: []Link{
		{Href: "/creator.three/reel/DAbc123xy/", Text: "watch", Label: ""},
	}}
	identity, via := ResolveIdentity(snap)
	assert.Equal(t, "creator.three", identity)
	assert.Equal(t, "href-path", via)
}

func TestResolveIdentityProfileLink(t *testing.T) {
	snap := &Snapshot{Links: []Link{
		{Href: "/explore/", Text: "Explore", Label: ""},
		{Href: "/creator.four/", Text: "follow", Label: ""},
	}}
	identity, via := ResolveIdentity(snap)
	assert.Equal(t, "creator.four", identity)
	assert.Equal(t, "profile-link", via)
}

func TestResolveIdentityIgnoresReservedPaths(t *testing.T) {
	snap := &Snapshot{Links: []Link{
		{Href: "/explore/", Text: "explore", Label: ""},
		{Href: "/direct/", Text: "direct", Label: ""},
	}}
	identity, _ := ResolveIdentity(snap)
	assert.Equal(t, "", identity)
}

func TestResolveMediaIDFromLocation(t *testing.T) {
	id, via := ResolveMediaID(feedSnapshot())
	assert.Equal(t, "DAbc123xy", id)
	assert.Equal(t, "location", via)
}

func TestResolveMediaIDFromContainerLink(t *testing.T) {
	snap := &Snapshot{
		Location: "https://www.instagram.com/", // feed root, no id embedded
		Links: []Link{
			{Href: "/creator.one/reels/", Text: "", Label: ""}, // collection page, no id
			{Href: "/creator.one/reel/DXyz789ab/", Text: "", Label: ""},
		},
	}
	id, via := ResolveMediaID(snap)
	assert.Equal(t, "DXyz789ab", id)
	assert.Equal(t, "container-link", via)
}

func TestPathSegmentsHandlesAbsoluteURLs(t *testing.T) {
	assert.Equal(t, []string{"user", "reel", "ID123xyz"},
		pathSegments("https://www.instagram.com/user/reel/ID123xyz/?igsh=1"))
	assert.Equal(t, []string(nil), pathSegments("/"))
}
