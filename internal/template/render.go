package template

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Predicate decides whether a conditional block's content is kept for the
// variables at hand. Predicates see exactly the data passed at render time.
type Predicate func(data map[string]any) bool

// blockPredicates keys every known conditional block. Adding a block is a new
// table entry; substitution logic stays untouched. Blocks without an entry
// keep their content (permissive default).
var blockPredicates = map[string]Predicate{
	// Expiring-points sentence: needs a positive point count and a date.
	"puntos_vencen": func(d map[string]any) bool {
		return cast.ToFloat64(d["puntos_vencen"]) > 0 && cast.ToString(d["fecha_vencimiento"]) != ""
	},
	// Welcome bonus: only when the signup actually earned points.
	"bono_bienvenida": func(d map[string]any) bool {
		return cast.ToFloat64(d["puntos_ganados"]) > 0
	},
	// Login credentials paragraph: an email to send them to, or forced on.
	"credenciales": func(d map[string]any) bool {
		return cast.ToString(d["email"]) != "" || cast.ToBool(d["enviar_credenciales"])
	},
}

var (
	blockRe       = regexp.MustCompile(`(?s)\{\{#(\w+)\}\}(.*?)\{\{/\w+\}\}`)
	strayMarkerRe = regexp.MustCompile(`\{\{[#/]\w+\}\}`)
	placeholderRe = regexp.MustCompile(`\{(\w+)\}`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// Render expands a template in two passes: conditional blocks first, then
// variable substitution. Placeholders without a value become the empty
// string, never the literal {name}.
func Render(tpl string, data map[string]any) string {
	out := blockRe.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := blockRe.FindStringSubmatch(m)
		name, inner := sub[1], sub[2]
		pred, known := blockPredicates[name]
		if !known || pred(data) {
			return inner
		}
		return ""
	})

	// An unpaired open marker would otherwise leak template syntax.
	out = strayMarkerRe.ReplaceAllString(out, "")

	return placeholderRe.ReplaceAllStringFunc(out, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := data[name]
		if !ok || v == nil {
			return ""
		}
		return cast.ToString(v)
	})
}

// SanitizePush makes a rendered body safe for a plain-text push payload:
// markup tags are stripped and all whitespace runs, newlines included,
// collapse to single spaces. Applied after rendering, push channel only.
func SanitizePush(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
