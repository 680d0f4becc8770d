// Package slug derives URL-safe product slugs from display names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
	strokeD    = strings.NewReplacer("đ", "d", "Đ", "D")
)

// Make folds diacritics, lower-cases, collapses every non [a-z0-9] run into a
// single hyphen and trims edge hyphens. Make is idempotent.
func Make(name string) string {
	folded, _, err := transform.String(newFolder(), strokeD.Replace(name))
	if err != nil {
		folded = name
	}
	out := nonAlnumRe.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(out, "-")
}

// transformers carry state, so each call builds its own chain.
func newFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
