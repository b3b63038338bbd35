package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smartreview/platform/pkg/scrape"
)

var (
	accessoryRe = regexp.MustCompile(`(?i)cable|charger|adapter|airtag|tag|strap|case|protector|mount|dongle|hub|remote`)
	batteryRe   = regexp.MustCompile(`(?i)battery|mah|charge|charging|recharge`)
	waterRe     = regexp.MustCompile(`(?i)water|swim|ip67|ip68|waterproof`)
	connectedRe = regexp.MustCompile(`(?i)alexa|app|bluetooth|wifi|ios|android`)
)

// BuildFallbackReview assembles a deterministic review from scraped listing
// data for when the model returns nothing usable. The copy adapts to what the
// bullets reveal about the product rather than using one generic template.
func BuildFallbackReview(productTitle, categoryLabel string, bullets []string, offerCount int) Review {
	title := scrape.CleanText(productTitle)
	var bulletLines []string
	for _, bullet := range bullets {
		if cleaned := scrape.CleanText(bullet); cleaned != "" {
			bulletLines = append(bulletLines, cleaned)
		}
		if len(bulletLines) >= 8 {
			break
		}
	}
	haystack := strings.ToLower(title + " " + strings.Join(bulletLines, " "))
	simpleAccessory := accessoryRe.MatchString(haystack)
	hasBattery := matchAny(bulletLines, batteryRe)
	hasWater := matchAny(bulletLines, waterRe)
	hasConnected := matchAny(bulletLines, connectedRe)
	categoryLower := strings.ToLower(categoryLabel)

	pros := RewriteBulletsAsPros(bulletLines)
	if len(pros) == 0 {
		pros = []string{
			"Relevant product match for the selected category",
			"Includes direct purchase options from multiple sellers",
		}
	}

	var cons []string
	if simpleAccessory {
		cons = []string{
			"Build quality and durability can differ noticeably between similar-looking options.",
			"Length/connector fit should be checked against your exact device setup.",
		}
	} else {
		cons = []string{
			pick(hasBattery,
				"Battery runtime can vary a lot based on active features and notification load.",
				"Battery/runtime behavior is not always predictable from listing text alone."),
			pick(hasConnected,
				"App setup and connectivity stability depend on phone compatibility and environment.",
				"Setup experience can vary depending on your existing devices and ecosystem."),
			pick(hasWater,
				"Water resistance claims should still be checked against your real usage (pool, sea, shower).",
				"Some practical limits only become clear after real-world daily use."),
		}
	}

	var bestFor []string
	if simpleAccessory {
		bestFor = []string{
			"Users who need a practical replacement or spare for everyday use.",
			"Buyers comparing price/value across similar options.",
		}
	} else {
		bestFor = []string{
			pick(strings.Contains(categoryLower, "smartwatch"),
				"Users who want everyday smartwatch features like notifications and activity tracking.",
				fmt.Sprintf("Users looking for a practical %s product in daily use.", categoryLabel)),
			pick(hasConnected,
				"People already comfortable with companion apps and connected features.",
				"Buyers who prefer straightforward feature sets over niche extras."),
			pick(offerCount > 1,
				"Shoppers who want to compare multiple sellers before checkout.",
				"Buyers who want a single direct purchase path."),
		}
	}

	var notFor []string
	if !simpleAccessory {
		notFor = []string{
			pick(strings.Contains(categoryLower, "smartwatch"),
				"Athletes who need advanced multi-sport or triathlon-grade training analytics.",
				"Power users who require highly specialized pro-level feature depth."),
			pick(hasConnected,
				"Users who want a fully offline experience with no app/account dependency.",
				"Buyers expecting premium features without validating full specs first."),
		}
	}

	excerpt := fmt.Sprintf("%s is selected as a relevant %s option. Use the offer box to compare seller pricing before buying.", title, categoryLabel)

	return Review{
		Title:             title,
		Excerpt:           excerpt,
		ListingHighlights: nil,
		Pros:              pros,
		Cons:              cons,
		BestFor:           bestFor,
		NotFor:            notFor,
		BodyParagraphs:    []string{excerpt},
	}
}

func matchAny(lines []string, re *regexp.Regexp) bool {
	for _, line := range lines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
