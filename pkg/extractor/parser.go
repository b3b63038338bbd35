package extractor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/smartreview/platform/pkg/scrape"
)

var (
	jsonLdRe     = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
	galleryRe    = regexp.MustCompile(`(?i)"(?:hiRes|large|mainUrl)"\s*:\s*"([^"]+)"`)
	titleTagRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	bulletsDivRe = regexp.MustCompile(`(?is)<div[^>]+id=["']feature-bullets["'][^>]*>(.*?)</div>`)
	listItemRe   = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	reviewsRe    = regexp.MustCompile(`(?i)customer reviews?`)
)

const (
	minBulletChars = 12
	maxBullets     = 10
)

type parsedDetail struct {
	Title       string
	Description string
	Bullets     []string
	Images      []string
	Price       *float64
}

// parseDetailPage extracts everything usable from a product detail page.
// Structured data is preferred, raw markup patterns fill the gaps.
func parseDetailPage(html string) parsedDetail {
	images := map[string]bool{}
	var ordered []string
	addImage := func(raw string) {
		img := scrape.HighResImage(scrape.CleanText(raw))
		if img == "" || !strings.HasPrefix(strings.ToLower(img), "http") {
			return
		}
		if !images[img] {
			images[img] = true
			ordered = append(ordered, img)
		}
	}

	jsonLdPrice := parseJSONLD(html, addImage)

	for _, m := range galleryRe.FindAllStringSubmatch(html, -1) {
		// Gallery JSON escapes ampersands as a literal \u0026 sequence.
		raw := strings.ReplaceAll(m[1], `\u0026`, "&")
		raw = strings.ReplaceAll(raw, `\/`, "/")
		addImage(scrape.DecodeEntities(raw))
	}

	title := scrape.ExtractMeta(html, "og:title")
	if title == "" {
		if m := titleTagRe.FindStringSubmatch(html); m != nil {
			title = scrape.InnerText(m[1])
		}
	}
	description := scrape.ExtractMeta(html, "description")
	if description == "" {
		description = scrape.ExtractMeta(html, "og:description")
	}
	bullets := parseBullets(html)

	price := metaPrice(html)
	if price == nil {
		price = jsonLdPrice
	}
	if price == nil {
		price = scrape.ParsePriceFromHTML(html)
	}
	if price == nil {
		price = scrape.ParsePriceLoose(description + " " + strings.Join(bullets, " "))
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return scrape.ImageScore(ordered[i]) > scrape.ImageScore(ordered[j])
	})

	return parsedDetail{
		Title:       scrape.CleanText(title),
		Description: scrape.CleanText(description),
		Bullets:     bullets,
		Images:      ordered,
		Price:       price,
	}
}

func parseJSONLD(html string, addImage func(string)) *float64 {
	var price *float64
	for _, m := range jsonLdRe.FindAllStringSubmatch(html, -1) {
		raw := strings.TrimSpace(m[1])
		if raw == "" {
			continue
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			continue
		}
		nodes := []interface{}{parsed}
		if list, ok := parsed.([]interface{}); ok {
			nodes = list
		}
		for _, node := range nodes {
			obj, ok := node.(map[string]interface{})
			if !ok {
				continue
			}
			nodeType, _ := obj["@type"].(string)
			if !strings.Contains(strings.ToLower(nodeType), "product") {
				continue
			}
			switch img := obj["image"].(type) {
			case string:
				addImage(img)
			case []interface{}:
				for _, entry := range img {
					if s, ok := entry.(string); ok {
						addImage(s)
					}
				}
			}
			if price == nil {
				price = jsonLdOfferPrice(obj["offers"])
			}
		}
	}
	return price
}

func jsonLdOfferPrice(offers interface{}) *float64 {
	parse := func(value interface{}) *float64 {
		switch v := value.(type) {
		case float64:
			if v > 0 {
				return &v
			}
		case string:
			if n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil && n > 0 {
				return &n
			}
		}
		return nil
	}
	switch node := offers.(type) {
	case map[string]interface{}:
		return parse(node["price"])
	case []interface{}:
		for _, entry := range node {
			if obj, ok := entry.(map[string]interface{}); ok {
				if p := parse(obj["price"]); p != nil {
					return p
				}
			}
		}
	}
	return nil
}

func parseBullets(html string) []string {
	scope := html
	if m := bulletsDivRe.FindStringSubmatch(html); m != nil {
		scope = m[1]
	}
	var bullets []string
	for _, m := range listItemRe.FindAllStringSubmatch(scope, -1) {
		text := scrape.InnerText(m[1])
		if len(text) < minBulletChars {
			continue
		}
		if reviewsRe.MatchString(text) {
			continue
		}
		bullets = append(bullets, text)
		if len(bullets) >= maxBullets {
			break
		}
	}
	return bullets
}

func metaPrice(html string) *float64 {
	raw := scrape.ExtractMeta(html, "product:price:amount")
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
