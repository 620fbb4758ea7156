// Package flow provides template interpolation for step text.
package flow

import "regexp"

// placeholderRegex matches {{name}} placeholders, where name is one or more
// word characters.
var placeholderRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces every {{name}} placeholder in tmpl with answers[name].
// Unknown names are blanked rather than rejected, which tolerates partially
// filled flows reached by unusual paths. Substituted values are never
// re-scanned for placeholders.
func Interpolate(tmpl string, answers map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[2 : len(match)-2]
		return answers[name]
	})
}
