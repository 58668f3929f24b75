// Package sanitize neutralizes injected markup in user-supplied text
// before it is embedded into outbound HTML email bodies.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag and attribute, leaving plain text.
var textPolicy = bluemonday.StrictPolicy()

// messagePolicy allows a small subset of inline formatting tags and no
// attributes at all, so neither onerror= handlers, javascript: hrefs
// nor style injection survive.
var messagePolicy = newMessagePolicy()

func newMessagePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "b", "i", "u")
	return p
}

// Text returns s with all markup stripped.
func Text(s string) string {
	return textPolicy.Sanitize(s)
}

// MessageHTML renders a message body for an HTML email: newlines
// become line breaks, then everything outside the allowed inline
// formatting subset is removed.
func MessageHTML(s string) string {
	withBreaks := strings.ReplaceAll(s, "\n", "<br>")
	return messagePolicy.Sanitize(withBreaks)
}
