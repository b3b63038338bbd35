package discovery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/smartreview/platform/pkg/scrape"
)

// Candidate is one search result worth considering for a review page.
type Candidate struct {
	ASIN     string `json:"asin"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

var (
	dpASINRe        = regexp.MustCompile(`(?i)/dp/([A-Z0-9]{10})(?:[/?#]|$)`)
	gpASINRe        = regexp.MustCompile(`(?i)/gp/product/([A-Z0-9]{10})(?:[/?#]|$)`)
	searchResultRe  = regexp.MustCompile(`(?i)<div[^>]+data-component-type=["']s-search-result["'][^>]*>`)
	resultLinkRe    = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"']*/(?:dp|gp/product)/[A-Z0-9]{10}[^"']*)["'][^>]*>`)
	resultTitleRe   = regexp.MustCompile(`(?is)<h2[^>]*>.*?<span[^>]*>(.*?)</span>.*?</h2>`)
	resultSnippetRe = regexp.MustCompile(`(?is)<div[^>]+class=["'][^"']*a-color-secondary[^"']*["'][^>]*>(.*?)</div>`)
	resultAltSnipRe = regexp.MustCompile(`(?is)<span[^>]+class=["'][^"']*a-size-base[^"']*["'][^>]*>(.*?)</span>`)
	resultImageRe   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["'][^>]*>`)
)

const maxResultBlockChars = 10000

// ParseASIN extracts the ten character product id from a detail page URL.
func ParseASIN(rawURL string) string {
	if m := dpASINRe.FindStringSubmatch(rawURL); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := gpASINRe.FindStringSubmatch(rawURL); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// NormalizeProductURL rewrites any detail page link to the canonical /dp form.
func NormalizeProductURL(baseURL, rawURL string) string {
	asin := ParseASIN(rawURL)
	if asin == "" {
		return ""
	}
	return fmt.Sprintf("%s/dp/%s", strings.TrimSuffix(baseURL, "/"), asin)
}

// ExtractKeyword turns a niche's keyword field into a search term. Pasted
// search URLs yield their query parameter, everything else passes through.
func ExtractKeyword(raw string) string {
	value := scrape.CleanText(raw)
	if !strings.HasPrefix(strings.ToLower(value), "http://") && !strings.HasPrefix(strings.ToLower(value), "https://") {
		return value
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return value
	}
	query := parsed.Query()
	for _, param := range []string{"k", "keywords", "field-keywords"} {
		if kw := scrape.CleanText(query.Get(param)); kw != "" {
			return kw
		}
	}
	return value
}

// SearchURL builds the paginated search address for a keyword.
func SearchURL(baseURL, keyword string, page int) string {
	return fmt.Sprintf("%s/s?k=%s&page=%d", strings.TrimSuffix(baseURL, "/"), url.QueryEscape(keyword), page)
}

// ParseSearchItems pulls candidates out of a search results page. Each result
// block is capped so one runaway div cannot dominate parsing.
func ParseSearchItems(baseURL, html string) []Candidate {
	indices := searchResultRe.FindAllStringIndex(html, -1)
	var out []Candidate
	for i, loc := range indices {
		end := len(html)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}
		block := html[loc[1]:end]
		if len(block) > maxResultBlockChars {
			block = block[:maxResultBlockChars]
		}

		linkMatch := resultLinkRe.FindStringSubmatch(block)
		if linkMatch == nil {
			continue
		}
		href := resolveHref(baseURL, linkMatch[1])
		asin := ParseASIN(href)
		if asin == "" {
			continue
		}

		title := ""
		if m := resultTitleRe.FindStringSubmatch(block); m != nil {
			title = scrape.InnerText(m[1])
		}
		if title == "" {
			title = fmt.Sprintf("Amazon product %s", asin)
		}

		snippet := ""
		if m := resultSnippetRe.FindStringSubmatch(block); m != nil {
			snippet = scrape.InnerText(m[1])
		} else if m := resultAltSnipRe.FindStringSubmatch(block); m != nil {
			snippet = scrape.InnerText(m[1])
		}

		imageURL := ""
		if m := resultImageRe.FindStringSubmatch(block); m != nil {
			imageURL = scrape.HighResImage(scrape.CleanText(m[1]))
		}

		out = append(out, Candidate{
			ASIN:     asin,
			URL:      NormalizeProductURL(baseURL, href),
			Title:    title,
			Snippet:  snippet,
			ImageURL: imageURL,
		})
	}
	return out
}

func resolveHref(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
