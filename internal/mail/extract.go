// Package mail converts nested message structures into plain text suitable
// for display and for model prompts. Every function here is a pure, total
// transform: no I/O, no errors, empty output for empty input.
package mail

import (
	"encoding/base64"
	"regexp"
	"strings"
)

// Part is one node of a message's MIME tree. Leaf nodes carry a
// transport-encoded payload in Body; container nodes carry children in
// Parts. Both mailbox adapters produce this shape so the extractor does
// not care which provider a message came from.
type Part struct {
	// MIMEType is the declared content type, e.g. "text/plain".
	MIMEType string

	// Body is the base64-encoded payload. Either the standard or the
	// URL-safe alphabet, with or without padding.
	Body string

	// Parts holds nested child parts for multipart containers.
	Parts []*Part
}

// ExtractBody walks a message part tree and returns the best plain-text
// body it can find: the first text/plain part by depth-first search, then
// the first text/html part with tags stripped, then the first part carrying
// any payload, then the root payload itself. Returns "" for a nil or
// totally empty tree.
func ExtractBody(root *Part) string {
	if root == nil {
		return ""
	}

	if body := findPart(root, func(p *Part) bool {
		return p.MIMEType == "text/plain" && p.Body != ""
	}); body != "" {
		return body
	}

	if body := findPart(root, func(p *Part) bool {
		return p.MIMEType == "text/html" && p.Body != ""
	}); body != "" {
		return HTMLToText(body)
	}

	if body := findPart(root, func(p *Part) bool {
		return p.Body != ""
	}); body != "" {
		return body
	}

	return ""
}

// findPart depth-first searches the tree for the first part matching the
// predicate and returns its decoded payload.
func findPart(p *Part, match func(*Part) bool) string {
	if match(p) {
		if decoded, ok := decodeBase64Any(p.Body); ok {
			return decoded
		}
	}
	for _, child := range p.Parts {
		if body := findPart(child, match); body != "" {
			return body
		}
	}
	return ""
}

// decodeBase64Any decodes data encoded with either the standard or the
// URL-safe base64 alphabet, tolerating missing padding.
func decodeBase64Any(data string) (string, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false
	}

	// Normalize the URL-safe alphabet to standard.
	normalized := strings.ReplaceAll(data, "-", "+")
	normalized = strings.ReplaceAll(normalized, "_", "/")

	// Repair padding.
	switch len(normalized) % 4 {
	case 2:
		normalized += "=="
	case 3:
		normalized += "="
	}

	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

var (
	reBreakTags = regexp.MustCompile(`(?is)<\s*(?:br\s*/?|/?p|/?div|/?tr|/?li|/?h[1-6])\s*>`)
	reAnyTag    = regexp.MustCompile(`(?is)<[^>]+>`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
	reSpaceRuns = regexp.MustCompile(`[ \t]{2,}`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// HTMLToText converts basic HTML into readable plaintext: script/style
// blocks and comments are removed, structural tags become newlines, all
// remaining tags are stripped, common entities are decoded, and whitespace
// is collapsed.
func HTMLToText(html string) string {
	s := stripTagContent(html, "script")
	s = stripTagContent(s, "style")
	s = stripComments(s)
	s = reBreakTags.ReplaceAllString(s, "\n")
	s = reAnyTag.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = reSpaceRuns.ReplaceAllString(s, " ")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// stripTagContent removes every <tag>...</tag> block, case-insensitively.
// An unclosed tag removes everything from its opening to the end.
func stripTagContent(s, tag string) string {
	opening := "<" + tag
	closing := "</" + tag + ">"
	for {
		lower := strings.ToLower(s)
		start := strings.Index(lower, opening)
		if start == -1 {
			return s
		}
		end := strings.Index(lower[start:], closing)
		if end == -1 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len(closing):]
	}
}

// stripComments removes <!-- ... --> blocks.
func stripComments(s string) string {
	for {
		start := strings.Index(s, "<!--")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start+4:], "-->")
		if end == -1 {
			return s[:start]
		}
		s = s[:start] + s[start+4+end+3:]
	}
}
