// Package sanitize strips markup from user supplied free text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxPasses bounds how many layers of entity encoding are peeled off.
const maxPasses = 8

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element from s and returns plain text with
// surrounding whitespace collapsed. Entity-encoded markup is decoded and
// stripped again until the text stops changing.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(s))
		if next == s {
			return collapse(s)
		}
		s = next
	}
	// Still decoding after maxPasses: keep the escaped form.
	return collapse(strict.Sanitize(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
