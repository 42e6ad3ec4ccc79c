package doctolib

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonWord = regexp.MustCompile(`\W`)

var stripMarks = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
)

// NormalizeCity folds a city name the way the search URLs expect:
// accents stripped, non-word runes replaced with dashes, lowercased.
// "Besançon" becomes "besancon", "Aix en Provence" "aix-en-provence".
func NormalizeCity(city string) string {
	folded, _, err := transform.String(stripMarks, city)
	if err != nil {
		folded = city
	}
	folded = nonWord.ReplaceAllString(folded, "-")
	return strings.ToLower(folded)
}
