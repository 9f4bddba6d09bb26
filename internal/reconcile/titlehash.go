// Package reconcile cleans the raw activity feed: validation, duplicate
// merging, and time-conflict evaluation against a participant's
// subscriptions.
package reconcile

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	nonWordRe      = regexp.MustCompile(`[^a-z0-9_-]`)
	dashCollapseRe = regexp.MustCompile(`-{2,}`)
)

// TitleHash normalizes an activity name into a stable comparison key:
// lowercased, trimmed, inner whitespace runs become single dashes, anything
// outside [a-z0-9_-] is stripped, and dash runs collapse to one dash.
// "Workshop: Advanced!!!" and "workshop advanced" hash identically.
func TitleHash(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = nonWordRe.ReplaceAllString(s, "")
	s = dashCollapseRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
