package extractor

import "fmt"

// Link is an anchor found inside the working container
type Link struct {
	Href  string `json:"href"`
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Snapshot is the raw material one in-page collection pass produces.
// The target UI carries no stable class names or ids, so the page side only
// locates the visually focused media element and its working container and
// emits candidate tokens and links; all interpretation happens Go-side in
// the strategy chains, where it can be unit tested.
type Snapshot struct {
	Location        string   `json:"location"`
	Found           bool     `json:"found"`     // focused media and container located
	Playing         bool     `json:"playing"`   // focused media is an actively playing video
	Sponsored       bool     `json:"sponsored"` // container carries an advertisement marker
	Live            bool     `json:"live"`      // container carries a livestream marker
	LikeAdjacent    []string `json:"likeAdjacent"`    // count tokens next to the like control
	ContainerTokens []string `json:"containerTokens"` // count tokens anywhere in the container
	PageTokens      []string `json:"pageTokens"`      // unscored whole-page fallback
	Links           []Link   `json:"links"`           // anchors in the container
}

// snapshotJS builds the collection script. The focused media element is the
// highest scorer on (viewport-center proximity, playing state, center-band
// overlap); the working container is the smallest ancestor - bounded depth -
// holding an identity link, a like control, and the media itself.
func snapshotJS(maxAncestorDepth int) string {
	return fmt.Sprintf(`(() => {
	const vh = window.innerHeight;
	const center = vh / 2;
	const band = vh * 0.3;
	const countRe = /^[0-9][0-9.,]*\s*[KkMm]?$/;

	const result = { location: window.location.href, found: false, playing: false,
		sponsored: false, live: false,
		likeAdjacent: [], containerTokens: [], pageTokens: [], links: [] };

	const collectTokens = (root, out, limit) => {
		const walker = document.createTreeWalker(root, NodeFilter.SHOW_TEXT);
		let node;
		while (out.length < limit && (node = walker.nextNode())) {
			const text = node.textContent.trim();
			if (text && countRe.test(text)) out.push(text);
		}
	};

	collectTokens(document.body, result.pageTokens, 40);

	let best = null, bestScore = -Infinity;
	for (const el of document.querySelectorAll('video, img')) {
		const r = el.getBoundingClientRect();
		if (r.width < 100 || r.height < 100) continue;
		const mid = r.top + r.height / 2;
		let score = -Math.abs(mid - center);
		if (el.tagName === 'VIDEO' && !el.paused) score += 500;
		const overlap = Math.min(r.bottom, center + band / 2) - Math.max(r.top, center - band / 2);
		if (overlap > band * 0.5) score += 250;
		if (score > bestScore) { bestScore = score; best = el; }
	}
	if (!best) return result;
	result.playing = best.tagName === 'VIDEO' && !best.paused;

	const hasLikeControl = (el) =>
		!!el.querySelector('svg[aria-label="Like"], svg[aria-label="Unlike"]');
	const hasIdentityLink = (el) =>
		Array.from(el.querySelectorAll('a[href^="/"]')).some(a => a.getAttribute('href') !== '/');

	let container = null, node = best;
	for (let depth = 0; depth < %d && node && node !== document.body; depth++) {
		node = node.parentElement;
		if (!node) break;
		let score = 0;
		if (hasIdentityLink(node)) score++;
		if (hasLikeControl(node)) score++;
		if (node.contains(best)) score++;
		if (score >= 3) { container = node; break; }
	}
	if (!container) container = best.closest('article') || best.parentElement;
	if (!container) return result;
	result.found = true;

	const containerText = container.innerText || '';
	result.sponsored = /\bSponsored\b/i.test(containerText);
	result.live = !!container.querySelector('svg[aria-label="Live"]') || /^LIVE$/m.test(containerText);

	const likeIcon = container.querySelector('svg[aria-label="Like"], svg[aria-label="Unlike"]');
	if (likeIcon) {
		let host = likeIcon.closest('div');
		for (let i = 0; i < 4 && host && host !== container; i++) {
			collectTokens(host, result.likeAdjacent, 5);
			if (result.likeAdjacent.length) break;
			host = host.parentElement;
		}
	}

	collectTokens(container, result.containerTokens, 20);

	for (const a of container.querySelectorAll('a[href]')) {
		result.links.push({
			href: a.getAttribute('href') || '',
			text: (a.textContent || '').trim().slice(0, 80),
			label: a.getAttribute('aria-label') || ''
		});
		if (result.links.length >= 30) break;
	}

	return result;
})()`, maxAncestorDepth)
}

// fingerprintJS is the lightweight DOM-only probe used for advance
// verification and the cheap metric gate. It reports the current location
// and the most plausible count token near the viewport center - no
// container walk, no identity resolution.
const fingerprintJS = `(() => {
	const center = window.innerHeight / 2;
	const reach = window.innerHeight * 0.6;
	const countRe = /^[0-9][0-9.,]*\s*[KkMm]?$/;
	let token = '';
	const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	let node;
	while ((node = walker.nextNode())) {
		const text = node.textContent.trim();
		if (!text || !countRe.test(text)) continue;
		const el = node.parentElement;
		if (!el) continue;
		const r = el.getBoundingClientRect();
		if (r.bottom > center - reach && r.top < center + reach) { token = text; break; }
	}
	return { location: window.location.href, token: token };
})()`

// probe is the fingerprint script's result
type probe struct {
	Location string `json:"location"`
	Token    string `json:"token"`
}
