package outreach

import (
	"regexp"
	"strings"
)

// Providers rarely return just the message: they prepend labels ("Here's a
// friendly message you could send:"), wrap the text in quotes or code fences,
// or append sign-off commentary. The layers below strip those in order; each
// layer is safe to run on already-clean text.

var (
	// Lead-in lines: meta-commentary ending in a colon, e.g.
	// "Sure! Here's a message you could send:"
	leadInPattern = regexp.MustCompile(`(?i)^(sure|okay|of course|certainly|absolutely|great|here)[^\n]*:\s*$`)

	// Bare label prefixes on the message line itself, e.g. "Message: hey ..."
	labelPattern = regexp.MustCompile(`(?i)^(message|dm|draft|text|response|output)\s*:\s*`)

	// Trailing commentary, e.g. "Let me know if you'd like a different tone!"
	trailerPattern = regexp.MustCompile(`(?i)^(let me know|feel free|hope (this|that) helps|i can also|would you like)`)

	fencePattern = regexp.MustCompile("^```[a-z]*\\s*$")
)

// CleanGenerated strips provider boilerplate from generated text, leaving
// only the message itself
func CleanGenerated(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")

	// Layer 1: drop code fences and lead-in lines from the top
	start := 0
	for start < len(lines) {
		line := strings.TrimSpace(lines[start])
		if line == "" || fencePattern.MatchString(line) || leadInPattern.MatchString(line) {
			start++
			continue
		}
		break
	}

	// Layer 2: drop trailing fences and commentary from the bottom
	end := len(lines)
	for end > start {
		line := strings.TrimSpace(lines[end-1])
		if line == "" || fencePattern.MatchString(line) || trailerPattern.MatchString(line) {
			end--
			continue
		}
		break
	}

	text = strings.TrimSpace(strings.Join(lines[start:end], "\n"))

	// Layer 3: drop a bare label prefix on what remains
	text = labelPattern.ReplaceAllString(text, "")

	// Layer 4: unwrap matched surrounding quotes
	text = stripMatchedQuotes(strings.TrimSpace(text))

	return strings.TrimSpace(text)
}

// stripMatchedQuotes removes one layer of surrounding quotes when the text is
// fully enclosed - a quote appearing mid-message is left alone
func stripMatchedQuotes(text string) string {
	if len(text) < 2 {
		return text
	}
	pairs := [][2]string{
		{`"`, `"`},
		{"'", "'"},
		{"“", "”"},
		{"‘", "’"},
	}
	for _, p := range pairs {
		if strings.HasPrefix(text, p[0]) && strings.HasSuffix(text, p[1]) {
			inner := text[len(p[0]) : len(text)-len(p[1])]
			// Only unwrap a full enclosure, not "quoted" ... "quoted"
			if p[0] != p[1] || !strings.Contains(inner, p[0]) {
				return inner
			}
		}
	}
	return text
}
