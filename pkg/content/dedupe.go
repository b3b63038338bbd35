package content

import (
	"regexp"
	"strings"

	"github.com/smartreview/platform/pkg/scrape"
)

var (
	storefrontPrefixRe = regexp.MustCompile(`(?i)^amazon\.com\s*:?\s*`)
	siteSuffixRe       = regexp.MustCompile(`(?i)\s+-\s+smart review$`)
	reviewWordRe       = regexp.MustCompile(`(?i)\breview\b`)
)

// NormalizeTitleForDedupe strips storefront prefixes, the word review and
// punctuation so retitled copies of the same product compare equal.
func NormalizeTitleForDedupe(input string) string {
	out := scrape.CleanText(input)
	out = storefrontPrefixRe.ReplaceAllString(out, "")
	out = siteSuffixRe.ReplaceAllString(out, "")
	out = reviewWordRe.ReplaceAllString(out, "")
	out = nonAlnumRe.ReplaceAllString(out, " ")
	return strings.ToLower(scrape.CleanText(out))
}

// IsLikelyDuplicateTitle reports whether two page titles almost certainly
// describe the same product. Substring containment only counts when both
// normalized titles are long enough to be distinctive.
func IsLikelyDuplicateTitle(candidate, existing string) bool {
	a := NormalizeTitleForDedupe(candidate)
	b := NormalizeTitleForDedupe(existing)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) >= 28 && len(b) >= 28 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	return false
}
