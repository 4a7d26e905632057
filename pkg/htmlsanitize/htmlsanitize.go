// Package htmlsanitize cleans user-supplied rich text before it is stored.
package htmlsanitize

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy

	// an opening, closing or self-closing tag, a comment or a doctype
	tagPattern = regexp.MustCompile(`<(?:/?[A-Za-z][^<>]*|![^<>]*)>`)
)

func ugcPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.AllowAttrs("class").OnElements("code", "pre", "span")
	})
	return policy
}

// Sanitize strips scripts, event handlers and unsafe URLs, keeping the
// formatting tags a chat or description may carry.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugcPolicy().Sanitize(s)
}

// IsPlainText reports whether s contains no tags. Stray angle brackets, as
// in "x > 1 and y < 2", are plain text.
func IsPlainText(s string) bool {
	return !tagPattern.MatchString(s)
}

// Clean sanitizes s only when it carries markup, so plain text such as
// "x > 1 and y < 2" is stored as written.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if IsPlainText(s) {
		return s
	}
	return strings.TrimSpace(Sanitize(s))
}
