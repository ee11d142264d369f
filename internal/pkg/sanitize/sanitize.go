// Package sanitize strips markup from user supplied text before it is stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict   = bluemonday.StrictPolicy()
	brackets = strings.NewReplacer("<", "", ">", "")
)

// Text removes every HTML element from s. Entities are decoded again so that
// plain text such as "Jonas's" survives unchanged; angle brackets do not.
func Text(s string) string {
	return strings.TrimSpace(brackets.Replace(html.UnescapeString(strict.Sanitize(s))))
}

// InPlace sanitizes every non-nil string.
func InPlace(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = Text(*f)
		}
	}
}
