package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRe      = regexp.MustCompile(`\s+`)
	numericRe    = regexp.MustCompile(`[0-9]{3,4}`)
	highResHint  = regexp.MustCompile(`(?i)sl1500|sl2000|ul1500|ux1500|ac_sl1500|ac_ul1500`)
	lowValueHint = regexp.MustCompile(`(?i)sprite|icon|thumb|thumbnail|play|logo`)
	sizeTokenRe  = regexp.MustCompile(`(?i)(\._[A-Z0-9,]+_)\.`)
	sizeToken2Re = regexp.MustCompile(`\._[^/]+_\.`)
	imageQueryRe = regexp.MustCompile(`(?i)(\.jpg|\.jpeg|\.png|\.webp)\?.*$`)
	loosePriceRe = regexp.MustCompile(`\$\s*([0-9]{1,5}(?:[.,][0-9]{2})?)`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#34;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

// StripTags removes markup, leaving inner text. Script and style blocks go
// first, contents included, so inline code never leaks into extracted text.
func StripTags(html string) string {
	out := scriptRe.ReplaceAllString(html, " ")
	out = styleRe.ReplaceAllString(out, " ")
	return tagRe.ReplaceAllString(out, " ")
}

// DecodeEntities resolves the handful of HTML entities that show up in
// product markup.
func DecodeEntities(text string) string {
	return entityReplacer.Replace(text)
}

// CleanText collapses whitespace runs and trims.
func CleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// InnerText is the common strip, decode, clean chain.
func InnerText(html string) string {
	return CleanText(DecodeEntities(StripTags(html)))
}

// HighResImage strips marketplace size tokens and query strings so the URL
// points at the original asset.
func HighResImage(url string) string {
	out := sizeTokenRe.ReplaceAllString(url, ".")
	out = sizeToken2Re.ReplaceAllString(out, ".")
	out = imageQueryRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

// ImageScore ranks candidate image URLs. Bigger pixel hints score higher,
// sprites and thumbnails sink.
func ImageScore(url string) int {
	score := 0
	best := 0
	for _, match := range numericRe.FindAllString(url, -1) {
		if n, err := strconv.Atoi(match); err == nil && n > best {
			best = n
		}
	}
	score += best
	if highResHint.MatchString(url) {
		score += 2000
	}
	if lowValueHint.MatchString(url) {
		score -= 3000
	}
	return score
}

// ParsePriceLoose finds a dollar amount inside free text.
func ParsePriceLoose(text string) *float64 {
	m := loosePriceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parsePriceToken(m[1])
}

func parsePriceToken(raw string) *float64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

var htmlPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)["']price["']\s*:\s*["']?\$?\s*([0-9]{1,5}(?:[.,][0-9]{2})?)["']?`),
	regexp.MustCompile(`(?is)<span[^>]+class=["'][^"']*a-price-whole[^"']*["'][^>]*>\s*([0-9]{1,5})\s*</span>.{0,140}?<span[^>]+class=["'][^"']*a-price-fraction[^"']*["'][^>]*>\s*([0-9]{2})\s*</span>`),
	regexp.MustCompile(`(?i)<span[^>]+class=["'][^"']*a-offscreen[^"']*["'][^>]*>\s*\$?\s*([0-9]{1,5}(?:[.,][0-9]{2})?)\s*</span>`),
	regexp.MustCompile(`(?i)data-a-price=["']\s*([0-9]{1,5}(?:[.,][0-9]{2})?)\s*["']`),
}

// ParsePriceFromHTML tries the known price markup patterns in priority order.
func ParsePriceFromHTML(html string) *float64 {
	for _, re := range htmlPricePatterns {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		token := m[1]
		if len(m) > 2 && m[2] != "" {
			token = m[1] + "." + m[2]
		}
		if price := parsePriceToken(token); price != nil {
			return price
		}
	}
	return nil
}

// ExtractMeta pulls a meta tag's content by property or name.
func ExtractMeta(html, key string) string {
	escaped := regexp.QuoteMeta(key)
	byProperty := regexp.MustCompile(`(?i)<meta[^>]+property=["']` + escaped + `["'][^>]+content=["']([^"']+)["'][^>]*>`)
	byName := regexp.MustCompile(`(?i)<meta[^>]+name=["']` + escaped + `["'][^>]+content=["']([^"']+)["'][^>]*>`)
	if m := byProperty.FindStringSubmatch(html); m != nil {
		return CleanText(DecodeEntities(m[1]))
	}
	if m := byName.FindStringSubmatch(html); m != nil {
		return CleanText(DecodeEntities(m[1]))
	}
	return ""
}
