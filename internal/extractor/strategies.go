package extractor

import (
	"regexp"
	"strings"
)

// Each resolution concern is an ordered list of named strategies, tried in
// sequence until one yields a candidate. The target UI changes constantly;
// when one heuristic dies the next takes over, and each stays independently
// testable.

var (
	handlePattern = regexp.MustCompile(`^[A-Za-z0-9._]{2,30}$`)
	byLinePattern = regexp.MustCompile(`(?i)\breels?\b.*\bby\s+@?([A-Za-z0-9._]{2,30})`)
	reelPathPattern = regexp.MustCompile(`/reels?/([A-Za-z0-9_-]{5,})`)
)

// nonProfilePrefixes are path roots that never name a user
var nonProfilePrefixes = map[string]bool{
	"explore":  true,
	"reels":    true,
	"reel":     true,
	"p":        true,
	"stories":  true,
	"accounts": true,
	"direct":   true,
	"about":    true,
	"legal":    true,
}

// MetricStrategy locates the engagement count in a snapshot
type MetricStrategy struct {
	Name string
	Fn   func(*Snapshot) string
}

// MetricStrategies is the fallback chain for the engagement count, in
// preference order
var MetricStrategies = []MetricStrategy{
	{
		// Tokens sitting next to the like control are the most trustworthy
		Name: "like-adjacent",
		Fn: func(s *Snapshot) string {
			return firstCount(s.LikeAdjacent)
		},
	},
	{
		Name: "container-scan",
		Fn: func(s *Snapshot) string {
			return firstCount(s.ContainerTokens)
		},
	},
	{
		// Whole-page fallback, unscored - better than nothing when the
		// container heuristic came up empty
		Name: "page-fallback",
		Fn: func(s *Snapshot) string {
			return firstCount(s.PageTokens)
		},
	},
}

// IdentityStrategy resolves the author handle from a snapshot
type IdentityStrategy struct {
	Name string
	Fn   func(*Snapshot) string
}

// IdentityStrategies is the fallback chain for the author handle
var IdentityStrategies = []IdentityStrategy{
	{
		// A link whose visible text is itself a handle and whose href points
		// at that handle's profile
		Name: "link-token",
		Fn: func(s *Snapshot) string {
			for _, l := range s.Links {
				text := strings.TrimPrefix(strings.TrimSpace(l.Text), "@")
				if text == "" || !handlePattern.MatchString(text) || isNonProfile(text) {
					continue
				}
				if strings.HasPrefix(l.Href, "/"+text) {
					return text
				}
			}
			return ""
		},
	},
	{
		// Accessible labels like "Reel by someuser" on feed-style links
		Name: "aria-label",
		Fn: func(s *Snapshot) string {
			for _, l := range s.Links {
				if m := byLinePattern.FindStringSubmatch(l.Label); m != nil {
					return m[1]
				}
			}
			return ""
		},
	},
	{
		// The handle embedded in an item link path: /<user>/reel/<id>/
		Name: "href-path",
		Fn: func(s *Snapshot) string {
			for _, l := range s.Links {
				segs := pathSegments(l.Href)
				if len(segs) >= 2 && (segs[1] == "reel" || segs[1] == "reels") &&
					handlePattern.MatchString(segs[0]) && !isNonProfile(segs[0]) {
					return segs[0]
				}
			}
			return ""
		},
	},
	{
		// Any bare profile link, excluding known non-profile path roots
		Name: "profile-link",
		Fn: func(s *Snapshot) string {
			for _, l := range s.Links {
				segs := pathSegments(l.Href)
				if len(segs) == 1 && handlePattern.MatchString(segs[0]) && !isNonProfile(segs[0]) {
					return segs[0]
				}
			}
			return ""
		},
	},
}

// MediaIDStrategy resolves the canonical item id for the focused reel
type MediaIDStrategy struct {
	Name string
	Fn   func(*Snapshot) string
}

// MediaIDStrategies is the fallback chain for the item id
var MediaIDStrategies = []MediaIDStrategy{
	{
		// The navigable location itself embeds the id while a reel is open
		Name: "location",
		Fn: func(s *Snapshot) string {
			return mediaIDFromURL(s.Location)
		},
	},
	{
		// An item-specific link in the container. The author's collection
		// page (/<user>/reels/) also matches the reel path shape, so links
		// without an id segment are skipped.
		Name: "container-link",
		Fn: func(s *Snapshot) string {
			return mediaIDFromLinks(s.Links)
		},
	},
}

// mediaIDFromLinks finds an item id embedded in a container link, or ""
func mediaIDFromLinks(links []Link) string {
	for _, l := range links {
		segs := pathSegments(l.Href)
		for i, seg := range segs {
			if (seg == "reel" || seg == "reels") && i+1 < len(segs) {
				return segs[i+1]
			}
		}
	}
	return ""
}

// ResolveMetric runs the metric chain, returning the token and the strategy
// that produced it
func ResolveMetric(s *Snapshot) (string, string) {
	for _, strategy := range MetricStrategies {
		if v := strategy.Fn(s); v != "" {
			return v, strategy.Name
		}
	}
	return "", ""
}

// ResolveIdentity runs the identity chain
func ResolveIdentity(s *Snapshot) (string, string) {
	for _, strategy := range IdentityStrategies {
		if v := strategy.Fn(s); v != "" {
			return v, strategy.Name
		}
	}
	return "", ""
}

// ResolveMediaID runs the item-id chain
func ResolveMediaID(s *Snapshot) (string, string) {
	for _, strategy := range MediaIDStrategies {
		if v := strategy.Fn(s); v != "" {
			return v, strategy.Name
		}
	}
	return "", ""
}

func firstCount(tokens []string) string {
	for _, t := range tokens {
		if IsCompactCount(t) {
			return strings.TrimSpace(t)
		}
	}
	return ""
}

func isNonProfile(segment string) bool {
	return nonProfilePrefixes[strings.ToLower(segment)]
}

func pathSegments(href string) []string {
	// Strip scheme/host for absolute URLs
	if idx := strings.Index(href, "://"); idx >= 0 {
		rest := href[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			href = rest[slash:]
		} else {
			href = "/"
		}
	}
	if idx := strings.IndexAny(href, "?#"); idx >= 0 {
		href = href[:idx]
	}
	var segs []string
	for _, s := range strings.Split(href, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// mediaIDFromURL extracts the reel id embedded in a URL, or ""
func mediaIDFromURL(url string) string {
	if m := reelPathPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}
