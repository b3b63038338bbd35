package content

import (
	"regexp"
	"strings"

	"github.com/smartreview/platform/pkg/scrape"
)

// Disclaimer closes every generated review page.
const Disclaimer = "This page may include affiliate links."

// Review is the structured payload a page is rendered from, whether it came
// from the AI model or the deterministic fallback.
type Review struct {
	Title             string   `json:"title"`
	Excerpt           string   `json:"excerpt"`
	ListingHighlights []string `json:"listingHighlights"`
	Pros              []string `json:"pros"`
	Cons              []string `json:"cons"`
	BestFor           []string `json:"bestFor"`
	NotFor            []string `json:"notFor"`
	BodyParagraphs    []string `json:"bodyParagraphs"`
}

var (
	nonAlnumRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	slugRe      = regexp.MustCompile(`[^a-z0-9]+`)
	slugTrimRe  = regexp.MustCompile(`^-+|-+$`)
	sentenceEnd = regexp.MustCompile(`[.!?]$`)
)

// NormalizeForLineCompare lowers, strips punctuation and collapses spaces so
// lightly reworded lines compare equal.
func NormalizeForLineCompare(input string) string {
	out := strings.ToLower(scrape.CleanText(input))
	out = nonAlnumRe.ReplaceAllString(out, "")
	return scrape.CleanText(out)
}

// ToSlug converts a title into a URL path segment, capped at 96 characters.
func ToSlug(value string) string {
	out := strings.ToLower(value)
	out = slugRe.ReplaceAllString(out, "-")
	out = slugTrimRe.ReplaceAllString(out, "")
	if len(out) > 96 {
		out = strings.Trim(out[:96], "-")
	}
	return out
}

const (
	minHighlightChars = 18
	maxHighlights     = 6
)

// PickListingHighlights keeps AI highlights that are genuinely rewritten.
// Lines copied from source bullets or too short are dropped; when fewer than
// three survive, the source bullets are rephrased instead.
func PickListingHighlights(aiLines, sourceBullets []string) []string {
	normalized := normalizedLineSet(sourceBullets)

	var kept []string
	for _, line := range aiLines {
		cleaned := scrape.CleanText(line)
		if len(cleaned) < minHighlightChars {
			continue
		}
		if normalized[NormalizeForLineCompare(cleaned)] {
			continue
		}
		kept = append(kept, cleaned)
	}
	if len(kept) >= 3 {
		if len(kept) > maxHighlights {
			kept = kept[:maxHighlights]
		}
		return kept
	}

	var fallback []string
	for _, bullet := range sourceBullets {
		if len(fallback) >= maxHighlights {
			break
		}
		cleaned := scrape.CleanText(bullet)
		if cleaned == "" {
			continue
		}
		if !sentenceEnd.MatchString(cleaned) {
			cleaned += "."
		}
		fallback = append(fallback, "Highlights practical value: "+cleaned)
	}
	return fallback
}

func normalizedLineSet(lines []string) map[string]bool {
	set := map[string]bool{}
	for _, line := range lines {
		if key := NormalizeForLineCompare(line); key != "" {
			set[key] = true
		}
	}
	return set
}

func dropCopiedLines(lines []string, copied map[string]bool) []string {
	var out []string
	for _, line := range lines {
		if copied[NormalizeForLineCompare(line)] {
			continue
		}
		out = append(out, line)
	}
	return out
}

// RewriteBulletsAsPros turns listing bullets into first-clause pro lines.
func RewriteBulletsAsPros(bullets []string) []string {
	var out []string
	for _, bullet := range bullets {
		if len(out) >= 5 {
			break
		}
		cleaned := scrape.CleanText(bullet)
		if cleaned == "" {
			continue
		}
		clause := cleaned
		if idx := strings.IndexAny(cleaned, ";,."); idx > 0 {
			clause = strings.TrimSpace(cleaned[:idx])
		}
		if clause == "" {
			clause = cleaned
		}
		if len(clause) > 90 {
			clause = strings.TrimSpace(clause[:87]) + "..."
		}
		out = append(out, "Useful in practice: "+strings.ToLower(clause[:1])+clause[1:])
	}
	return out
}

// ComposeMarkdown renders the review body. Section caps keep pages uniform no
// matter how verbose the model was, and pro lines copied straight from the
// source bullets are dropped the same way highlights are.
func ComposeMarkdown(review Review, sourceBullets []string) string {
	copied := normalizedLineSet(sourceBullets)
	pros := capLines(dropCopiedLines(review.Pros, copied), 5)
	if len(pros) == 0 {
		pros = RewriteBulletsAsPros(sourceBullets)
	}

	var lines []string
	lines = append(lines, "## Listing Highlights")
	for _, item := range PickListingHighlights(review.ListingHighlights, sourceBullets) {
		lines = append(lines, "- "+item)
	}
	lines = append(lines, "", "## Pros")
	for _, item := range pros {
		lines = append(lines, "- "+item)
	}
	lines = append(lines, "", "## Cons")
	for _, item := range capLines(review.Cons, 3) {
		lines = append(lines, "- "+item)
	}
	lines = append(lines, "", "## Best For")
	for _, item := range capLines(review.BestFor, 3) {
		lines = append(lines, "- "+item)
	}
	if notFor := capLines(review.NotFor, 2); len(notFor) > 0 {
		lines = append(lines, "", "## Not For")
		for _, item := range notFor {
			lines = append(lines, "- "+item)
		}
	}
	lines = append(lines, "")
	for _, paragraph := range capLines(review.BodyParagraphs, 5) {
		lines = append(lines, paragraph)
	}
	lines = append(lines, "", Disclaimer)
	return strings.Join(lines, "\n")
}

func capLines(values []string, max int) []string {
	var out []string
	for _, value := range values {
		if len(out) >= max {
			break
		}
		cleaned := scrape.CleanText(value)
		if cleaned == "" {
			continue
		}
		out = append(out, cleaned)
	}
	return out
}
