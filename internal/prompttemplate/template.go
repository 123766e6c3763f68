// Package prompttemplate renders the `{{var}}` / `{{#section}}...{{/section}}`
// prompt templates used by the AI safe-page generation job. Hand-rolled
// by design: spec.md explicitly excludes a templating library for this
// concern, since the grammar is two constructs wide and fixed.
package prompttemplate

import (
	"regexp"
)

var sectionPattern = regexp.MustCompile(`(?s)\{\{#(\w+)\}\}(.*?)\{\{/\1\}\}`)
var varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes every `{{var}}` occurrence globally from vars, and
// strips `{{#section}}...{{/section}}` blocks whose variable is empty or
// missing (keeping the inner content, substitution applied, otherwise).
func Render(tmpl string, vars map[string]string) string {
	out := sectionPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := sectionPattern.FindStringSubmatch(match)
		name, body := groups[1], groups[2]
		if vars[name] == "" {
			return ""
		}
		return body
	})

	out = varPattern.ReplaceAllStringFunc(out, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})

	return out
}

// StripUnresolved removes any `{{var}}` tokens Render left untouched
// (variables not present in the map at all), used as a final pass before
// persisting generated copy so stray template syntax never reaches output.
func StripUnresolved(s string) string {
	return varPattern.ReplaceAllString(s, "")
}
